// Package writer renders the reports of one profile as an Excel workbook.
package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"weddingsync/internal/core"
	"weddingsync/internal/report"
)

const (
	SheetSummary    = "Summary"
	SheetSources    = "Sources"
	SheetCategories = "Categories"
	SheetMonths     = "Months"
	SheetLedger     = "Ledger"

	euroFormat = "#,##0.00"
)

// Workbook is the input of WriteXLSX.
type Workbook struct {
	Profile  core.Profile
	Expenses []core.Expense
	Totals   report.Totals
}

type sheetWriter struct {
	f      *excelize.File
	header int
	money  int
}

// WriteXLSX writes one sheet per report to w.
func WriteXLSX(w io.Writer, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E7E6E6"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	format := euroFormat
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}
	sw := sheetWriter{f: f, header: header, money: money}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	steps := []func(Workbook) error{
		sw.summary,
		sw.sources,
		sw.categories,
		sw.months,
		sw.ledger,
	}
	for _, step := range steps {
		if err := step(wb); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (sw sheetWriter) summary(wb Workbook) error {
	t := wb.Totals
	rows := [][]any{
		{"Profile", wb.Profile.Name},
		{"Total budget", t.TotalMasterBudget.Euros()},
		{"Total agreed", t.TotalAgreed.Euros()},
		{"Total paid", t.TotalPaid.Euros()},
		{"Still to pay", t.TotalPending.Euros()},
		{"Balance available", t.BalanceAvailable.Euros()},
		{"Paid of budget (%)", t.PercentPaid},
		{"Orphaned expenses", t.Orphaned.Count},
	}
	if err := sw.table(SheetSummary, []string{"Metric", "Value"}, rows); err != nil {
		return err
	}
	return sw.styleMoney(SheetSummary, "B3", "B7")
}

func (sw sheetWriter) sources(wb Workbook) error {
	var rows [][]any
	for _, s := range wb.Totals.Sources {
		rows = append(rows, []any{s.Name, s.Limit.Euros(), s.Paid.Euros(), s.Balance.Euros(), s.Percent, len(s.Transactions)})
	}
	return sw.sheet(SheetSources, []string{"Source", "Limit", "Paid", "Balance", "Used (%)", "Expenses"}, rows, "B", "D")
}

func (sw sheetWriter) categories(wb Workbook) error {
	var rows [][]any
	for _, c := range wb.Totals.Categories {
		rows = append(rows, []any{c.Name, c.Agreed.Euros(), c.Paid.Euros(), c.Pending.Euros(), c.Count, c.Percent, c.ShareOfTotal})
	}
	return sw.sheet(SheetCategories, []string{"Category", "Agreed", "Paid", "Pending", "Expenses", "Paid (%)", "Share (%)"}, rows, "B", "D")
}

func (sw sheetWriter) months(wb Workbook) error {
	var rows [][]any
	for _, m := range wb.Totals.Months {
		rows = append(rows, []any{m.Label, m.TotalSpent.Euros(), len(m.Items)})
	}
	return sw.sheet(SheetMonths, []string{"Month", "Paid", "Expenses"}, rows, "B", "B")
}

func (sw sheetWriter) ledger(wb Workbook) error {
	var rows [][]any
	for _, e := range wb.Expenses {
		rows = append(rows, []any{
			e.Date.String(), e.Name, e.Category, e.Account,
			e.TotalAmount.Euros(), e.AdvancePaid.Euros(), e.Pending().Euros(), e.Notes,
		})
	}
	return sw.sheet(SheetLedger, []string{"Date", "Name", "Category", "Source", "Total", "Paid", "Pending", "Notes"}, rows, "E", "G")
}

// sheet creates a new sheet with a table whose columns fromCol..toCol hold
// euro amounts.
func (sw sheetWriter) sheet(name string, header []string, rows [][]any, fromCol, toCol string) error {
	if _, err := sw.f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	if err := sw.table(name, header, rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return sw.styleMoney(name, fmt.Sprintf("%s2", fromCol), fmt.Sprintf("%s%d", toCol, len(rows)+1))
}

func (sw sheetWriter) table(name string, header []string, rows [][]any) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := sw.f.SetSheetRow(name, "A1", &head); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := sw.f.SetCellStyle(name, "A1", last, sw.header); err != nil {
		return fmt.Errorf("style %s header: %w", name, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+1, err)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return sw.f.SetColWidth(name, "A", lastCol, 18)
}

func (sw sheetWriter) styleMoney(name, from, to string) error {
	if err := sw.f.SetCellStyle(name, from, to, sw.money); err != nil {
		return fmt.Errorf("style %s amounts: %w", name, err)
	}
	return nil
}
