package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"weddingsync/internal/core"
	"weddingsync/internal/report"
	"weddingsync/internal/vault"
)

var (
	colorOK   = text.Colors{text.FgGreen}
	colorWarn = text.Colors{text.FgYellow}
	colorBad  = text.Colors{text.FgRed}
	colorDim  = text.Colors{text.FgHiBlack}
)

func paint(s string, c text.Colors) string { return c.Sprint(s) }

func euro(m core.Money) string {
	return fmt.Sprintf("€%.2f", m.Euros())
}

func pct(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// balanceColor is red once a source or budget is overspent and yellow past 90%.
func balanceColor(balance core.Money, used float64) text.Colors {
	switch {
	case balance.Cents < 0:
		return colorBad
	case used >= 90:
		return colorWarn
	default:
		return colorOK
	}
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func alignRight(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		cfgs = append(cfgs, table.ColumnConfig{Number: c, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	return cfgs
}

func printSummary(w io.Writer, profile core.Profile, t report.Totals) {
	tw := newTable(w, "Summary: "+profile.Name)
	tw.AppendRows([]table.Row{
		{"Total budget", euro(t.TotalMasterBudget)},
		{"Total agreed", euro(t.TotalAgreed)},
		{"Total paid", euro(t.TotalPaid)},
		{"Still to pay", euro(t.TotalPending)},
		{"Balance available", paint(euro(t.BalanceAvailable), balanceColor(t.BalanceAvailable, t.PercentPaid))},
		{"Paid of budget", pct(t.PercentPaid)},
	})
	if t.Orphaned.Count > 0 {
		tw.AppendSeparator()
		tw.AppendRow(table.Row{
			paint("Orphaned expenses", colorWarn),
			fmt.Sprintf("%d (%s) in %s", t.Orphaned.Count, euro(t.Orphaned.Paid), strings.Join(t.Orphaned.Accounts, ", ")),
		})
	}
	tw.SetColumnConfigs(alignRight(2))
	tw.Render()
}

func printSources(w io.Writer, t report.Totals) {
	tw := newTable(w, "Funding sources")
	tw.AppendHeader(table.Row{"Source", "Limit", "Paid", "Balance", "Used", "Expenses"})
	if len(t.Sources) == 0 {
		tw.AppendRow(table.Row{paint("no funding sources", colorDim), "", "", "", "", ""})
	}
	for _, s := range t.Sources {
		tw.AppendRow(table.Row{
			s.Name,
			euro(s.Limit),
			euro(s.Paid),
			paint(euro(s.Balance), balanceColor(s.Balance, s.Percent)),
			pct(s.Percent),
			len(s.Transactions),
		})
	}
	tw.AppendFooter(table.Row{"Total", euro(t.TotalMasterBudget), euro(t.TotalPaid), euro(t.BalanceAvailable), pct(t.PercentPaid), ""})
	tw.SetColumnConfigs(alignRight(2, 3, 4, 5, 6))
	tw.Render()
}

func printCategories(w io.Writer, t report.Totals) {
	tw := newTable(w, "Categories")
	tw.AppendHeader(table.Row{"Category", "Agreed", "Paid", "Pending", "Expenses", "Paid %", "Share"})
	for _, c := range t.Categories {
		tw.AppendRow(table.Row{c.Name, euro(c.Agreed), euro(c.Paid), euro(c.Pending), c.Count, pct(c.Percent), pct(c.ShareOfTotal)})
	}
	tw.AppendFooter(table.Row{"Total", euro(t.TotalAgreed), euro(t.TotalPaid), euro(t.TotalPending), "", "", ""})
	tw.SetColumnConfigs(alignRight(2, 3, 4, 5, 6, 7))
	tw.Render()
}

func printMonths(w io.Writer, t report.Totals) {
	tw := newTable(w, "Monthly spending")
	tw.AppendHeader(table.Row{"Month", "Paid", "Expenses"})
	for _, m := range t.Months {
		tw.AppendRow(table.Row{m.Label, euro(m.TotalSpent), len(m.Items)})
	}
	tw.SetColumnConfigs(alignRight(2, 3))
	tw.Render()
}

func printLedger(w io.Writer, expenses []core.Expense, stats report.LedgerStats) {
	tw := newTable(w, "Ledger")
	tw.AppendHeader(table.Row{"Date", "Name", "Category", "Source", "Total", "Paid", "Pending"})
	for _, e := range expenses {
		pending := euro(e.Pending())
		if e.Settled() {
			pending = paint("settled", colorOK)
		}
		tw.AppendRow(table.Row{e.Date.String(), e.Name, e.Category, e.Account, euro(e.TotalAmount), euro(e.AdvancePaid), pending})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d expenses", stats.Count), "", "", euro(stats.Agreed), euro(stats.Paid), euro(stats.Pending)})
	tw.SetColumnConfigs(alignRight(5, 6, 7))
	tw.Render()
}

func printPreview(w io.Writer, p vault.Preview) {
	tw := newTable(w, "Vault "+p.Version)
	tw.AppendRows([]table.Row{
		{"Exported", p.Timestamp},
		{"Profiles", fmt.Sprintf("%d (%s)", p.ProfileCount, strings.Join(p.ProfileNames, ", "))},
		{"Expenses", p.ExpenseCount},
		{"Bank accounts", p.BankAccountCount},
	})
	tw.Render()
}
