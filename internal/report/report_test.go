package report

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingsync/internal/core"
)

func money(euros int64) core.Money { return core.Money{Cents: euros * 100} }

func settings(pairs ...any) core.Settings {
	s := core.NewSettings()
	for i := 0; i+1 < len(pairs); i += 2 {
		name := pairs[i].(string)
		s.Accounts = append(s.Accounts, name)
		s.AccountBudgets[name] = money(int64(pairs[i+1].(int)))
	}
	return s
}

func TestComputeSingleSource(t *testing.T) {
	s := settings("Savings", 1000)
	expenses := []core.Expense{{
		ID: "1", Name: "Venue deposit", Category: "Venue", Date: "2024-05-01",
		TotalAmount: money(500), AdvancePaid: money(200), Account: "Savings",
	}}

	got := Compute(expenses, s, core.Categories)

	assert.Equal(t, money(1000), got.TotalMasterBudget)
	assert.Equal(t, money(500), got.TotalAgreed)
	assert.Equal(t, money(200), got.TotalPaid)
	assert.Equal(t, money(800), got.BalanceAvailable)
	assert.Equal(t, money(300), got.TotalPending)
	assert.InDelta(t, 20.0, got.PercentPaid, 1e-9)

	src, ok := got.Source("Savings")
	require.True(t, ok)
	assert.Equal(t, money(800), src.Balance)
	assert.InDelta(t, 20.0, src.Percent, 1e-9)
	require.Len(t, src.Categories, 1)
	assert.Equal(t, "Venue", src.Categories[0].Name)
	assert.Equal(t, 0, got.Orphaned.Count)
}

func TestComputeZeroBudget(t *testing.T) {
	got := Compute(nil, core.NewSettings(), core.Categories)
	assert.Zero(t, got.PercentPaid)
	assert.Zero(t, got.BalanceAvailable.Cents)
	assert.Empty(t, got.Sources)
	assert.Empty(t, got.Categories)
	assert.Empty(t, got.Months)
}

func TestMasterBudgetCountsUnlistedLimits(t *testing.T) {
	s := settings("Savings", 1000)
	s.AccountBudgets["Leftover"] = money(250)

	got := Compute(nil, s, core.Categories)
	assert.Equal(t, money(1250), got.TotalMasterBudget)
	assert.Len(t, got.Sources, 1)
}

func TestOrphans(t *testing.T) {
	s := settings("Savings", 1000)
	expenses := []core.Expense{
		{ID: "1", Category: "Venue", AdvancePaid: money(10), Account: "Savings"},
		{ID: "2", Category: "Music", AdvancePaid: money(20), Account: "Old Card"},
		{ID: "3", Category: "Music", AdvancePaid: money(5), Account: "Old Card"},
		{ID: "4", Category: "Other", AdvancePaid: money(1), Account: ""},
	}
	o := Orphans(expenses, s)
	assert.Equal(t, 3, o.Count)
	assert.Equal(t, money(26), o.Paid)
	assert.Equal(t, []string{"Old Card", ""}, o.Accounts)
}

func TestSourceCategoryBreakdownOrder(t *testing.T) {
	s := settings("Savings", 5000)
	expenses := []core.Expense{
		{Category: "Music", AdvancePaid: money(100), Account: "Savings"},
		{Category: "Venue", AdvancePaid: money(300), Account: "Savings"},
		{Category: "Flowers", AdvancePaid: money(100), Account: "Savings"},
		{Category: "Attire", TotalAmount: money(900), Account: "Savings"},
	}
	src := Sources(expenses, s, core.Categories)[0]
	require.Len(t, src.Categories, 3, "categories with nothing paid are dropped")
	assert.Equal(t, "Venue", src.Categories[0].Name)
	// ties keep category list order
	assert.Equal(t, "Flowers", src.Categories[1].Name)
	assert.Equal(t, "Music", src.Categories[2].Name)
	assert.Len(t, src.Transactions, 4)
}

func TestCategories(t *testing.T) {
	expenses := []core.Expense{
		{Category: "Catering", TotalAmount: money(100), AdvancePaid: money(50)},
		{Category: "Venue", TotalAmount: money(300), AdvancePaid: money(300)},
		{Category: "Catering", TotalAmount: money(100)},
	}
	got := Categories(expenses, core.Categories, money(500))
	require.Len(t, got, 2)
	assert.Equal(t, "Venue", got[0].Name)
	assert.InDelta(t, 60.0, got[0].ShareOfTotal, 1e-9)
	assert.Equal(t, "Catering", got[1].Name)
	assert.Equal(t, 2, got[1].Count)
	assert.Equal(t, money(150), got[1].Pending)
	assert.InDelta(t, 25.0, got[1].Percent, 1e-9)
}

func TestMonths(t *testing.T) {
	expenses := []core.Expense{
		{ID: "a", Date: "2024-01-02", AdvancePaid: money(1)},
		{ID: "b", Date: "2024-03-10", AdvancePaid: money(2)},
		{ID: "c", Date: "2024-01-15", AdvancePaid: money(3)},
		{ID: "d", Date: "", AdvancePaid: money(4)},
	}
	got := Months(expenses)
	require.Len(t, got, 3)

	assert.Equal(t, "March 2024", got[0].Label)
	assert.Equal(t, "January 2024", got[1].Label)
	assert.Equal(t, money(4), got[1].TotalSpent)
	assert.Equal(t, "c", got[1].Items[0].ID)
	assert.Equal(t, "a", got[1].Items[1].ID)
	assert.Equal(t, "Undated", got[2].Label)
}

func TestSortByDateDesc(t *testing.T) {
	expenses := []core.Expense{
		{ID: "old", Date: "2023-12-31"},
		{ID: "none", Date: "tbd"},
		{ID: "new", Date: "2024-02-01"},
		{ID: "new2", Date: "2024-02-01"},
	}
	SortByDateDesc(expenses)
	ids := []string{expenses[0].ID, expenses[1].ID, expenses[2].ID, expenses[3].ID}
	assert.Equal(t, []string{"new", "new2", "old", "none"}, ids)
}

func TestLedger(t *testing.T) {
	expenses := []core.Expense{
		{Category: "Venue", TotalAmount: money(400), AdvancePaid: money(100)},
		{Category: "Music", TotalAmount: money(100), AdvancePaid: money(100)},
	}
	all := Ledger(expenses, AllCategories)
	assert.Equal(t, 2, all.Count)
	assert.Equal(t, money(300), all.Pending)
	assert.InDelta(t, 40.0, all.Percent, 1e-9)

	venue := Ledger(expenses, "Venue")
	assert.Equal(t, 1, venue.Count)
	assert.InDelta(t, 25.0, venue.Percent, 1e-9)

	none := Ledger(expenses, "Flowers")
	assert.Zero(t, none.Count)
	assert.Zero(t, none.Percent)
}

func TestBanks(t *testing.T) {
	accounts := []core.BankAccount{
		{ID: "1", Name: "Checking", LastAnalysis: &core.BankAnalysis{
			ClosingBalance: money(1200), TotalCredits: money(3000), TotalDebits: money(1800),
		}},
		{ID: "2", Name: "Never analysed"},
		{ID: "3", Name: "Joint", LastAnalysis: &core.BankAnalysis{ClosingBalance: money(-50)}},
	}
	o := Banks(accounts)
	assert.Equal(t, 2, o.AccountCount)
	assert.Equal(t, money(1150), o.TotalBalance)
	assert.Equal(t, money(3000), o.TotalCredits)
}

func TestComputeInvariants(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := settings("Savings", gofakeit.IntRange(0, 20000), "Gift Fund", gofakeit.IntRange(0, 5000))
		var expenses []core.Expense
		n := gofakeit.IntRange(0, 30)
		for i := 0; i < n; i++ {
			total := int64(gofakeit.IntRange(0, 1_000_000))
			expenses = append(expenses, core.Expense{
				ID:          gofakeit.UUID(),
				Name:        gofakeit.ProductName(),
				Category:    core.Categories[gofakeit.IntRange(0, len(core.Categories)-1)],
				Date:        core.Date(gofakeit.DateRange(mustDate("2023-01-01"), mustDate("2025-12-31")).Format(core.DateLayout)),
				TotalAmount: core.Money{Cents: total},
				AdvancePaid: core.Money{Cents: int64(gofakeit.IntRange(0, int(total)))},
				Account:     gofakeit.RandomString([]string{"Savings", "Gift Fund", "Removed"}),
			})
		}

		got := Compute(expenses, s, core.Categories)

		var perSource, catPaid, monthPaid int64
		for _, src := range got.Sources {
			perSource += src.Paid.Cents
			assert.Equal(t, src.Limit.Cents-src.Paid.Cents, src.Balance.Cents)
		}
		for _, c := range got.Categories {
			catPaid += c.Paid.Cents
		}
		for _, m := range got.Months {
			monthPaid += m.TotalSpent.Cents
		}
		assert.Equal(t, got.TotalPaid.Cents, perSource+got.Orphaned.Paid.Cents)
		assert.Equal(t, got.TotalPaid.Cents, catPaid)
		assert.Equal(t, got.TotalPaid.Cents, monthPaid)
		assert.Equal(t, got.TotalMasterBudget.Cents-got.TotalPaid.Cents, got.BalanceAvailable.Cents)
	}
}
