package services

import (
	"context"
	"strings"

	"weddingsync/internal/core"
)

func (s *WorkspaceService) AddBankAccount(ctx context.Context, name, institution string) (core.BankAccount, error) {
	name = strings.TrimSpace(name)
	var acc core.BankAccount
	err := s.mutate(ctx, "bank.added", func(st *state) (part, error) {
		if name == "" {
			return 0, core.ErrEmptyName
		}
		acc = core.BankAccount{
			ID:          s.newID(),
			Name:        name,
			Institution: strings.TrimSpace(institution),
			UpdatedAt:   s.timestamp(),
		}
		st.ws.BankAccounts = append(st.ws.BankAccounts, acc)
		return partBanks, nil
	})
	return acc, err
}

func (s *WorkspaceService) deleteBankAccount(st *state, id string) (part, error) {
	i := findBank(st.ws.BankAccounts, id)
	if i < 0 {
		return 0, ErrBankAccountNotFound
	}
	st.ws.BankAccounts = append(st.ws.BankAccounts[:i], st.ws.BankAccounts[i+1:]...)
	delete(st.staged, id)
	return partBanks, nil
}

// StageBankAnalysis keeps a freshly analysed statement aside until the
// user confirms it. A later stage for the same account replaces it.
func (s *WorkspaceService) StageBankAnalysis(accountID string, analysis core.BankAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if findBank(s.st.ws.BankAccounts, accountID) < 0 {
		return ErrBankAccountNotFound
	}
	s.st.staged[accountID] = analysis.Clone()
	return nil
}

// StagedAnalysis returns the analysis waiting for confirmation, if any.
func (s *WorkspaceService) StagedAnalysis(accountID string) (*core.BankAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.staged[accountID]
	return a.Clone(), ok
}

func (s *WorkspaceService) DiscardBankAnalysis(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.staged, accountID)
}

// ConfirmBankAnalysis overwrites the account's last analysis with the staged one.
func (s *WorkspaceService) ConfirmBankAnalysis(ctx context.Context, accountID string) (core.BankAccount, error) {
	var acc core.BankAccount
	err := s.mutate(ctx, "bank.synced", func(st *state) (part, error) {
		staged, ok := st.staged[accountID]
		if !ok {
			return 0, ErrNothingStaged
		}
		i := findBank(st.ws.BankAccounts, accountID)
		if i < 0 {
			return 0, ErrBankAccountNotFound
		}
		st.ws.BankAccounts[i].LastAnalysis = staged.Clone()
		st.ws.BankAccounts[i].UpdatedAt = s.timestamp()
		acc = st.ws.BankAccounts[i]
		delete(st.staged, accountID)
		return partBanks, nil
	})
	return acc, err
}
