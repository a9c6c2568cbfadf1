package main

import "weddingsync/internal/cli"

func main() {
	cli.Execute()
}
