package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"weddingsync/internal/core"
	"weddingsync/internal/log"
	"weddingsync/internal/report"
	"weddingsync/internal/services"
	"weddingsync/internal/storage"
	"weddingsync/internal/writer"
)

var reportSections = []string{"summary", "sources", "categories", "months", "ledger"}

type reportOptions struct {
	profile  string
	sections []string
	category string
	xlsx     string
}

func newReportCmd(g *globals) *cobra.Command {
	var o reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the budget reports of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range o.sections {
				if !slices.Contains(reportSections, s) {
					return fmt.Errorf("unknown section %q: must be one of %v", s, reportSections)
				}
			}
			if o.category != report.AllCategories && !core.IsCategory(o.category) {
				return fmt.Errorf("%w: %s", core.ErrInvalidCategory, o.category)
			}
			a, err := g.setup(cmd)
			if err != nil {
				return err
			}
			return a.report(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.profile, "profile", "", "profile id (default: the active profile)")
	cmd.Flags().StringSliceVar(&o.sections, "section", []string{"summary", "sources", "categories"}, fmt.Sprintf("sections to print, any of %v", reportSections))
	cmd.Flags().StringVar(&o.category, "category", report.AllCategories, "ledger category filter")
	cmd.Flags().StringVar(&o.xlsx, "xlsx", "", "write an Excel workbook to this path instead of printing")
	return cmd
}

func (a *app) report(cmd *cobra.Command, o reportOptions) error {
	ctx := cmd.Context()
	store, closeKV, err := a.openKV()
	if err != nil {
		return err
	}
	defer closeKV()
	kv := store.KV

	ws, err := openWorkspace(ctx, kv)
	if err != nil {
		return err
	}
	snap := ws.Snapshot()
	if o.profile != "" && o.profile != snap.Active.ID {
		snap, err = profileSnapshot(ctx, kv, snap, o.profile)
		if err != nil {
			return err
		}
	}
	totals := report.Compute(snap.Expenses, snap.Settings, core.Categories)

	if o.xlsx != "" {
		f, err := os.Create(o.xlsx)
		if err != nil {
			return fmt.Errorf("create %s: %w", o.xlsx, err)
		}
		wb := writer.Workbook{Profile: snap.Active, Expenses: snap.Expenses, Totals: totals}
		if err := writer.WriteXLSX(f, wb); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", o.xlsx, err)
		}
		a.logger.WithComponent(log.ComponentCLI).Info("Report workbook written",
			log.FieldFileName, o.xlsx,
			log.FieldProfileID, snap.Active.ID)
		return nil
	}

	out := cmd.OutOrStdout()
	for _, section := range o.sections {
		switch section {
		case "summary":
			printSummary(out, snap.Active, totals)
		case "sources":
			printSources(out, totals)
		case "categories":
			printCategories(out, totals)
		case "months":
			printMonths(out, totals)
		case "ledger":
			items := make([]core.Expense, 0, len(snap.Expenses))
			for _, e := range snap.Expenses {
				if o.category == report.AllCategories || e.Category == o.category {
					items = append(items, e)
				}
			}
			report.SortByDateDesc(items)
			printLedger(out, items, report.Ledger(snap.Expenses, o.category))
		}
	}
	return nil
}

// profileSnapshot reads another profile straight from the store so the
// active profile is left alone.
func profileSnapshot(ctx context.Context, kv storage.KV, snap services.Snapshot, profileID string) (services.Snapshot, error) {
	i := slices.IndexFunc(snap.Profiles, func(p core.Profile) bool { return p.ID == profileID })
	if i < 0 {
		return services.Snapshot{}, fmt.Errorf("%w: %s", services.ErrProfileNotFound, profileID)
	}
	w, err := storage.NewStore(kv).LoadWorkspace(ctx, profileID)
	if err != nil {
		return services.Snapshot{}, err
	}
	return services.Snapshot{
		Profiles:     snap.Profiles,
		Active:       snap.Profiles[i],
		Expenses:     w.Expenses,
		Settings:     w.Settings,
		BankAccounts: w.BankAccounts,
	}, nil
}
