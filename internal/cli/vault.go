package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"weddingsync/internal/log"
	"weddingsync/internal/vault"
)

func newExportCmd(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored profile to a vault file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.setup(cmd)
			if err != nil {
				return err
			}
			store, closeKV, err := a.openKV()
			if err != nil {
				return err
			}
			defer closeKV()
			kv := store.KV

			doc, err := vault.New(kv, nil).Export(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return vault.WriteTo(cmd.OutOrStdout(), doc)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := vault.WriteTo(f, doc); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}
			a.logger.WithComponent(log.ComponentVault).Info("Vault exported",
				log.FieldFileName, output,
				"profiles", len(doc.Profiles))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(g *globals) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all stored data with a vault file",
		Long:  "Replace all stored data with a vault file. Use - to read from stdin and --dry-run to only show what the file contains.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(cmd)
			if err != nil {
				return err
			}
			store, closeKV, err := a.openKV()
			if err != nil {
				return err
			}
			defer closeKV()
			kv := store.KV

			ws, err := openWorkspace(cmd.Context(), kv)
			if err != nil {
				return err
			}
			v := vault.New(kv, ws)

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			doc, err := v.Decode(in)
			if err != nil {
				return err
			}
			preview, err := v.Preview(doc)
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), preview)
			if dryRun {
				return nil
			}
			if err := v.Restore(cmd.Context(), doc); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), paint("Vault restored", colorOK))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only preview the file")
	return cmd
}
