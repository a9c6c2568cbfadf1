package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the weddingsync command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "weddingsync",
		Short:         "Wedding expense tracker",
		Long:          "Track wedding expenses against funding sources, analyse receipts and bank statements, and keep vault backups.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "TOML config file (overrides WEDDINGSYNC_CONFIG)")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	root.PersistentFlags().StringVar(&g.backend, "backend", "", "data backend: sqlite or memory")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite database path")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(g),
		newExportCmd(g),
		newImportCmd(g),
		newReportCmd(g),
		newCalcCmd(),
		newWorkerCmd(g),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// ExecuteWorker runs the backup worker as its own binary.
func ExecuteWorker() {
	root := NewRootCmd()
	root.SetArgs(append([]string{"worker"}, os.Args[1:]...))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
