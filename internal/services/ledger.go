package services

import (
	"context"
	"strings"

	"weddingsync/internal/core"
	"weddingsync/internal/report"
)

// SaveExpense creates an expense when id is empty and replaces an existing
// one otherwise. New expenses go to the head of the ledger, which is then
// ordered newest first; updates keep their position.
func (s *WorkspaceService) SaveExpense(ctx context.Context, id string, draft core.Expense) (core.Expense, error) {
	var saved core.Expense
	reason := "expense.updated"
	if id == "" {
		reason = "expense.created"
	}
	err := s.mutate(ctx, reason, func(st *state) (part, error) {
		if len(st.ws.Settings.Accounts) == 0 {
			return 0, ErrNoFundingSources
		}
		e := draft
		e.Name = strings.TrimSpace(e.Name)
		e.Notes = strings.TrimSpace(e.Notes)
		if e.Account == "" {
			e.Account = st.ws.Settings.Accounts[0]
		}
		e.UpdatedAt = s.timestamp()
		if err := e.Validate(); err != nil {
			return 0, err
		}

		if id == "" {
			e.ID = s.newID()
			st.ws.Expenses = append([]core.Expense{e}, st.ws.Expenses...)
			report.SortByDateDesc(st.ws.Expenses)
		} else {
			i := findExpense(st.ws.Expenses, id)
			if i < 0 {
				return 0, ErrExpenseNotFound
			}
			e.ID = id
			st.ws.Expenses[i] = e
		}
		saved = e
		return partExpenses, nil
	})
	return saved, err
}

// Settle marks an expense as fully paid.
func (s *WorkspaceService) Settle(ctx context.Context, id string) (core.Expense, error) {
	var settled core.Expense
	err := s.mutate(ctx, "expense.settled", func(st *state) (part, error) {
		i := findExpense(st.ws.Expenses, id)
		if i < 0 {
			return 0, ErrExpenseNotFound
		}
		st.ws.Expenses[i].AdvancePaid = st.ws.Expenses[i].TotalAmount
		st.ws.Expenses[i].UpdatedAt = s.timestamp()
		settled = st.ws.Expenses[i]
		return partExpenses, nil
	})
	return settled, err
}

func (s *WorkspaceService) deleteExpense(st *state, id string) (part, error) {
	i := findExpense(st.ws.Expenses, id)
	if i < 0 {
		return 0, ErrExpenseNotFound
	}
	st.ws.Expenses = append(st.ws.Expenses[:i], st.ws.Expenses[i+1:]...)
	return partExpenses, nil
}

// AddSource registers a funding source with a zero limit.
func (s *WorkspaceService) AddSource(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	return s.mutate(ctx, "source.added", func(st *state) (part, error) {
		if name == "" {
			return 0, core.ErrEmptySourceName
		}
		if st.ws.Settings.HasSource(name) {
			return 0, ErrDuplicateSource
		}
		st.ws.Settings.Accounts = append(st.ws.Settings.Accounts, name)
		return partSettings, nil
	})
}

// removeSource drops the source and its limit. Expenses that referenced it
// are kept and show up as orphans.
func (s *WorkspaceService) removeSource(st *state, name string) (part, error) {
	i := indexOf(st.ws.Settings.Accounts, name)
	if i < 0 {
		return 0, ErrSourceNotFound
	}
	st.ws.Settings.Accounts = append(st.ws.Settings.Accounts[:i], st.ws.Settings.Accounts[i+1:]...)
	delete(st.ws.Settings.AccountBudgets, name)
	return partSettings, nil
}

// SetBudget replaces the limit of a funding source.
func (s *WorkspaceService) SetBudget(ctx context.Context, name string, limit core.Money) error {
	return s.mutate(ctx, "source.budget", func(st *state) (part, error) {
		if !st.ws.Settings.HasSource(name) {
			return 0, ErrSourceNotFound
		}
		st.ws.Settings.AccountBudgets[name] = limit
		return partSettings, nil
	})
}

// Transfer moves amount from one source limit to another. Limits may go
// negative.
func (s *WorkspaceService) Transfer(ctx context.Context, from, to string, amount core.Money) error {
	if from == "" || to == "" || from == to || amount.Cents <= 0 {
		return ErrInvalidTransfer
	}
	return s.mutate(ctx, "source.transfer", func(st *state) (part, error) {
		if !st.ws.Settings.HasSource(from) || !st.ws.Settings.HasSource(to) {
			return 0, ErrSourceNotFound
		}
		b := st.ws.Settings.AccountBudgets
		b[from] = b[from].Sub(amount)
		b[to] = b[to].Add(amount)
		return partSettings, nil
	})
}
