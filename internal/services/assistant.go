package services

import (
	"context"

	"weddingsync/internal/core"
)

// Replies handed back to the assistant. Unknown targets are explained, never
// treated as errors.
const (
	MsgBudgetUpdated      = "Budget setting updated."
	MsgBankUpdated        = "Bank statement updated."
	MsgBudgetNotFound     = "Budget Source not found in Settings."
	MsgBankNotFound       = "Bank account not found in Bank Section."
	MsgNoMatchingSource   = "No matching Budget Source found."
	MsgIncomeRecorded     = "Received money recorded."
	MsgExpenseRecorded    = "Expense recorded in Ledger."
	MsgBankIncomeRecorded = "Recorded as Income in Bank Section."
	MsgBankExpenseRecord  = "Recorded as Expense in Bank Section."

	incomePrefix   = "(INCOME) "
	quickEntryNote = "Quick entry via AI Chat"
)

// ModifyBudget applies delta to a funding source limit or, for the bank
// target, to a bank account's closing balance.
func (s *WorkspaceService) ModifyBudget(ctx context.Context, name string, delta core.Money, target core.TargetType) (string, error) {
	if target == core.TargetBank {
		return s.ApplyBankDelta(ctx, name, delta)
	}
	return s.ApplyBudgetDelta(ctx, name, delta)
}

func (s *WorkspaceService) ApplyBudgetDelta(ctx context.Context, name string, delta core.Money) (string, error) {
	msg := MsgBudgetUpdated
	err := s.mutate(ctx, "assistant.budget", func(st *state) (part, error) {
		if !st.ws.Settings.HasSource(name) {
			msg = MsgBudgetNotFound
			return 0, nil
		}
		b := st.ws.Settings.AccountBudgets
		b[name] = b[name].Add(delta)
		return partSettings, nil
	})
	return msg, err
}

// ApplyBankDelta matches the account name case-insensitively. Positive deltas
// count as credits, negative ones as debits.
func (s *WorkspaceService) ApplyBankDelta(ctx context.Context, name string, delta core.Money) (string, error) {
	msg := MsgBankUpdated
	err := s.mutate(ctx, "assistant.bank", func(st *state) (part, error) {
		matched := false
		for i := range st.ws.BankAccounts {
			acc := &st.ws.BankAccounts[i]
			if !sameName(acc.Name, name) {
				continue
			}
			matched = true
			a := analysisOf(acc)
			a.ClosingBalance = a.ClosingBalance.Add(delta)
			if delta.Cents > 0 {
				a.TotalCredits = a.TotalCredits.Add(delta)
			} else if delta.Cents < 0 {
				a.TotalDebits = a.TotalDebits.Add(delta.Abs())
			}
			acc.UpdatedAt = s.timestamp()
		}
		if !matched {
			msg = MsgBankNotFound
			return 0, nil
		}
		return partBanks, nil
	})
	return msg, err
}

// RecordTransaction adds a quick entry. On the budget target income raises
// the source limit and leaves a zero-amount marker row in the ledger, while
// spending becomes a fully paid ledger row. On the bank target the entry
// moves the balance and joins the recent transactions.
func (s *WorkspaceService) RecordTransaction(ctx context.Context, name string, amount core.Money, account string, target core.TargetType) (string, error) {
	income := core.IsIncome(name)
	if target == core.TargetBank {
		return s.recordBankTransaction(ctx, name, amount, account, income)
	}

	var msg string
	err := s.mutate(ctx, "assistant.transaction", func(st *state) (part, error) {
		if !st.ws.Settings.HasSource(account) {
			msg = MsgNoMatchingSource
			return 0, nil
		}
		e := core.Expense{
			ID:        s.newID(),
			Name:      name,
			Category:  core.DefaultCategory,
			Date:      s.today(),
			Account:   account,
			UpdatedAt: s.timestamp(),
		}
		touched := partExpenses
		if income {
			b := st.ws.Settings.AccountBudgets
			b[account] = b[account].Add(amount)
			e.Name = incomePrefix + name
			e.Notes = "Received " + amount.String() + ". Budget updated."
			touched |= partSettings
			msg = MsgIncomeRecorded
		} else {
			e.TotalAmount = amount
			e.AdvancePaid = amount
			e.Notes = quickEntryNote
			msg = MsgExpenseRecorded
		}
		st.ws.Expenses = append([]core.Expense{e}, st.ws.Expenses...)
		return touched, nil
	})
	return msg, err
}

func (s *WorkspaceService) recordBankTransaction(ctx context.Context, name string, amount core.Money, account string, income bool) (string, error) {
	msg := MsgBankExpenseRecord
	if income {
		msg = MsgBankIncomeRecorded
	}
	err := s.mutate(ctx, "assistant.bank_transaction", func(st *state) (part, error) {
		matched := false
		for i := range st.ws.BankAccounts {
			acc := &st.ws.BankAccounts[i]
			if !sameName(acc.Name, account) {
				continue
			}
			matched = true
			a := analysisOf(acc)
			tx := core.BankTransaction{
				Date:        s.today().String(),
				Description: name,
				Amount:      amount,
				Type:        core.Debit,
			}
			if income {
				tx.Type = core.Credit
				a.ClosingBalance = a.ClosingBalance.Add(amount)
				a.TotalCredits = a.TotalCredits.Add(amount)
			} else {
				a.ClosingBalance = a.ClosingBalance.Sub(amount)
				a.TotalDebits = a.TotalDebits.Add(amount)
			}
			txs := append([]core.BankTransaction{tx}, a.TopTransactions...)
			if len(txs) > core.MaxBankTransactions {
				txs = txs[:core.MaxBankTransactions]
			}
			a.TopTransactions = txs
			acc.UpdatedAt = s.timestamp()
		}
		if !matched {
			msg = MsgBankNotFound
			return 0, nil
		}
		return partBanks, nil
	})
	return msg, err
}

// analysisOf returns the account's analysis, starting an empty one for
// accounts that were never synced.
func analysisOf(acc *core.BankAccount) *core.BankAnalysis {
	if acc.LastAnalysis == nil {
		acc.LastAnalysis = &core.BankAnalysis{TopTransactions: []core.BankTransaction{}}
	}
	return acc.LastAnalysis
}
