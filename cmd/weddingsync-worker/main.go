// Command weddingsync-worker writes vault backups whenever a profile changes.
package main

import "weddingsync/internal/cli"

func main() {
	cli.ExecuteWorker()
}
