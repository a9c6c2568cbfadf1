// Package report derives every total the application shows from the ledger
// and the funding source limits. All functions are pure and recompute from
// scratch; nothing here is stored.
package report

import (
	"sort"
	"time"

	"weddingsync/internal/core"
)

// AllCategories is the ledger filter value meaning "no filter".
const AllCategories = "All"

const (
	undatedKey   = "0000-00"
	undatedLabel = "Undated"
)

type (
	// CategorySpend is one row of a funding source's category breakdown.
	CategorySpend struct {
		Name  string     `json:"name"`
		Spent core.Money `json:"spent"`
		Count int        `json:"count"`
	}

	SourceReport struct {
		Name         string          `json:"name"`
		Paid         core.Money      `json:"paid"`
		Limit        core.Money      `json:"limit"`
		Balance      core.Money      `json:"balance"`
		Percent      float64         `json:"percent"`
		Transactions []core.Expense  `json:"transactions"`
		Categories   []CategorySpend `json:"categories"`
	}

	// OrphanReport collects expenses pointing at a funding source that no
	// longer exists.
	OrphanReport struct {
		Count    int            `json:"count"`
		Paid     core.Money     `json:"paid"`
		Accounts []string       `json:"accounts"`
		Items    []core.Expense `json:"items"`
	}

	CategoryDetail struct {
		Name         string     `json:"name"`
		Agreed       core.Money `json:"agreed"`
		Paid         core.Money `json:"paid"`
		Pending      core.Money `json:"pending"`
		Count        int        `json:"count"`
		Percent      float64    `json:"percent"`
		ShareOfTotal float64    `json:"shareOfTotal"`
	}

	MonthlyGroup struct {
		ID         string         `json:"id"`
		Label      string         `json:"label"`
		TotalSpent core.Money     `json:"totalSpent"`
		Items      []core.Expense `json:"items"`
	}

	Totals struct {
		TotalMasterBudget core.Money       `json:"totalMasterBudget"`
		TotalAgreed       core.Money       `json:"totalAgreed"`
		TotalPaid         core.Money       `json:"totalPaid"`
		PercentPaid       float64          `json:"percentPaid"`
		BalanceAvailable  core.Money       `json:"balanceAvailable"`
		TotalPending      core.Money       `json:"totalPending"`
		Sources           []SourceReport   `json:"sources"`
		Orphaned          OrphanReport     `json:"orphaned"`
		Categories        []CategoryDetail `json:"categories"`
		Months            []MonthlyGroup   `json:"months"`
	}

	LedgerStats struct {
		Count   int        `json:"count"`
		Agreed  core.Money `json:"agreed"`
		Paid    core.Money `json:"paid"`
		Pending core.Money `json:"pending"`
		Percent float64    `json:"percent"`
	}

	BankOverview struct {
		TotalBalance core.Money `json:"totalBalance"`
		TotalCredits core.Money `json:"totalCredits"`
		TotalDebits  core.Money `json:"totalDebits"`
		AccountCount int        `json:"accountCount"`
	}
)

// Percent returns part/whole*100, or 0 when whole is not positive.
func Percent(part, whole core.Money) float64 {
	if whole.Cents <= 0 {
		return 0
	}
	return float64(part.Cents) / float64(whole.Cents) * 100
}

// Compute builds every derived total for one profile.
func Compute(expenses []core.Expense, settings core.Settings, categories []string) Totals {
	var t Totals
	for _, limit := range settings.AccountBudgets {
		t.TotalMasterBudget = t.TotalMasterBudget.Add(limit)
	}
	t.TotalAgreed, t.TotalPaid = sums(expenses)
	t.PercentPaid = Percent(t.TotalPaid, t.TotalMasterBudget)
	t.BalanceAvailable = t.TotalMasterBudget.Sub(t.TotalPaid)
	t.TotalPending = t.TotalAgreed.Sub(t.TotalPaid)

	t.Sources = Sources(expenses, settings, categories)
	t.Orphaned = Orphans(expenses, settings)
	t.Categories = Categories(expenses, categories, t.TotalAgreed)
	t.Months = Months(expenses)
	return t
}

// Source looks up the report of one funding source by name.
func (t Totals) Source(name string) (SourceReport, bool) {
	for _, s := range t.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceReport{}, false
}

// Sources reports every configured funding source, in configured order.
func Sources(expenses []core.Expense, settings core.Settings, categories []string) []SourceReport {
	out := make([]SourceReport, 0, len(settings.Accounts))
	for _, name := range settings.Accounts {
		txs := []core.Expense{}
		for _, e := range expenses {
			if e.Account == name {
				txs = append(txs, e)
			}
		}
		_, paid := sums(txs)
		limit := settings.AccountBudgets[name]

		breakdown := []CategorySpend{}
		for _, cat := range categories {
			var c CategorySpend
			c.Name = cat
			for _, e := range txs {
				if e.Category == cat {
					c.Spent = c.Spent.Add(e.AdvancePaid)
					c.Count++
				}
			}
			if c.Spent.Cents > 0 {
				breakdown = append(breakdown, c)
			}
		}
		sort.SliceStable(breakdown, func(i, j int) bool {
			return breakdown[i].Spent.Cents > breakdown[j].Spent.Cents
		})

		out = append(out, SourceReport{
			Name:         name,
			Paid:         paid,
			Limit:        limit,
			Balance:      limit.Sub(paid),
			Percent:      Percent(paid, limit),
			Transactions: txs,
			Categories:   breakdown,
		})
	}
	return out
}

// Orphans collects expenses whose funding source is not configured.
func Orphans(expenses []core.Expense, settings core.Settings) OrphanReport {
	var r OrphanReport
	seen := map[string]bool{}
	for _, e := range expenses {
		if settings.HasSource(e.Account) {
			continue
		}
		r.Count++
		r.Paid = r.Paid.Add(e.AdvancePaid)
		r.Items = append(r.Items, e)
		if !seen[e.Account] {
			seen[e.Account] = true
			r.Accounts = append(r.Accounts, e.Account)
		}
	}
	return r
}

// Categories reports categories with at least one expense, largest agreed first.
func Categories(expenses []core.Expense, categories []string, totalAgreed core.Money) []CategoryDetail {
	out := []CategoryDetail{}
	for _, cat := range categories {
		var matched []core.Expense
		for _, e := range expenses {
			if e.Category == cat {
				matched = append(matched, e)
			}
		}
		if len(matched) == 0 {
			continue
		}
		agreed, paid := sums(matched)
		out = append(out, CategoryDetail{
			Name:         cat,
			Agreed:       agreed,
			Paid:         paid,
			Pending:      agreed.Sub(paid),
			Count:        len(matched),
			Percent:      Percent(paid, agreed),
			ShareOfTotal: Percent(agreed, totalAgreed),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Agreed.Cents > out[j].Agreed.Cents
	})
	return out
}

// Months buckets expenses by calendar month, most recent month first.
func Months(expenses []core.Expense) []MonthlyGroup {
	groups := map[string]*MonthlyGroup{}
	for _, e := range expenses {
		key, label := undatedKey, undatedLabel
		if t, ok := e.Date.Time(); ok {
			key = t.Format("2006-01")
			label = MonthLabel(t)
		}
		g, ok := groups[key]
		if !ok {
			g = &MonthlyGroup{ID: key, Label: label}
			groups[key] = g
		}
		g.TotalSpent = g.TotalSpent.Add(e.AdvancePaid)
		g.Items = append(g.Items, e)
	}

	out := make([]MonthlyGroup, 0, len(groups))
	for _, g := range groups {
		SortByDateDesc(g.Items)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// MonthLabel renders "January 2024".
func MonthLabel(t time.Time) string {
	return t.Format("January 2006")
}

// SortByDateDesc orders expenses newest first. Undated rows sink to the end
// and ties keep their relative order.
func SortByDateDesc(expenses []core.Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		ti, _ := expenses[i].Date.Time()
		tj, _ := expenses[j].Date.Time()
		return ti.After(tj)
	})
}

// Ledger summarises the ledger filtered to one category ("All" or "" for none).
func Ledger(expenses []core.Expense, category string) LedgerStats {
	var filtered []core.Expense
	for _, e := range expenses {
		if category == "" || category == AllCategories || e.Category == category {
			filtered = append(filtered, e)
		}
	}
	agreed, paid := sums(filtered)
	return LedgerStats{
		Count:   len(filtered),
		Agreed:  agreed,
		Paid:    paid,
		Pending: agreed.Sub(paid),
		Percent: Percent(paid, agreed),
	}
}

// Banks aggregates the latest statement snapshot of every analysed account.
func Banks(accounts []core.BankAccount) BankOverview {
	var o BankOverview
	for _, a := range accounts {
		if a.LastAnalysis == nil {
			continue
		}
		o.TotalBalance = o.TotalBalance.Add(a.LastAnalysis.ClosingBalance)
		o.TotalCredits = o.TotalCredits.Add(a.LastAnalysis.TotalCredits)
		o.TotalDebits = o.TotalDebits.Add(a.LastAnalysis.TotalDebits)
		o.AccountCount++
	}
	return o
}

func sums(expenses []core.Expense) (agreed, paid core.Money) {
	for _, e := range expenses {
		agreed = agreed.Add(e.TotalAmount)
		paid = paid.Add(e.AdvancePaid)
	}
	return agreed, paid
}
