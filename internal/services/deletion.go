package services

import (
	"context"
	"log/slog"
	"time"

	"weddingsync/internal/core"
)

// DeletionTTL is how long a confirmation token stays valid.
const DeletionTTL = 10 * time.Minute

type DeletionKind string

const (
	DeleteExpense     DeletionKind = "expense"
	DeleteSource      DeletionKind = "source"
	DeleteProfile     DeletionKind = "profile"
	DeleteBankAccount DeletionKind = "bank_account"
)

func (k DeletionKind) Validate() error {
	switch k {
	case DeleteExpense, DeleteSource, DeleteProfile, DeleteBankAccount:
		return nil
	default:
		return ErrInvalidDeletionKind
	}
}

// PendingDeletion is what the user is asked to confirm. Sources are
// identified by name, everything else by id.
type PendingDeletion struct {
	Token     string       `json:"token"`
	Kind      DeletionKind `json:"kind"`
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	ProfileID string       `json:"profileId"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func (p PendingDeletion) sameTarget(o PendingDeletion) bool {
	return p.Kind == o.Kind && p.ID == o.ID && p.ProfileID == o.ProfileID
}

// RequestDeletion validates the target and returns a confirmation token.
// Nothing is removed until ConfirmDeletion is called with that token. A new
// request for the same target replaces the previous token, and expired
// tokens are dropped.
func (s *WorkspaceService) RequestDeletion(kind DeletionKind, id string) (PendingDeletion, error) {
	if err := kind.Validate(); err != nil {
		return PendingDeletion{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := PendingDeletion{Kind: kind, ID: id, ProfileID: s.st.active.ID}
	switch kind {
	case DeleteExpense:
		i := findExpense(s.st.ws.Expenses, id)
		if i < 0 {
			return PendingDeletion{}, ErrExpenseNotFound
		}
		p.Name = s.st.ws.Expenses[i].Name
	case DeleteSource:
		if !s.st.ws.Settings.HasSource(id) {
			return PendingDeletion{}, ErrSourceNotFound
		}
		p.Name = id
	case DeleteBankAccount:
		i := findBank(s.st.ws.BankAccounts, id)
		if i < 0 {
			return PendingDeletion{}, ErrBankAccountNotFound
		}
		p.Name = s.st.ws.BankAccounts[i].Name
	case DeleteProfile:
		if id == core.DefaultProfileID {
			return PendingDeletion{}, ErrDefaultProfile
		}
		i := findProfile(s.st.profiles, id)
		if i < 0 {
			return PendingDeletion{}, ErrProfileNotFound
		}
		p.Name = s.st.profiles[i].Name
		p.ProfileID = ""
	}

	now := s.now()
	for token, old := range s.pending {
		if !now.Before(old.ExpiresAt) || old.sameTarget(p) {
			delete(s.pending, token)
		}
	}
	p.Token = s.newID()
	p.ExpiresAt = now.Add(DeletionTTL).UTC()
	s.pending[p.Token] = p
	return p, nil
}

// CancelDeletion forgets a pending confirmation.
func (s *WorkspaceService) CancelDeletion(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, token)
}

// ConfirmDeletion executes a pending deletion. A token works once, even
// when the deletion itself fails.
func (s *WorkspaceService) ConfirmDeletion(ctx context.Context, token string) (PendingDeletion, error) {
	s.mu.Lock()
	p, ok := s.pending[token]
	delete(s.pending, token)
	expired := ok && !s.now().Before(p.ExpiresAt)
	s.mu.Unlock()
	if !ok || expired {
		return PendingDeletion{}, ErrUnknownConfirmation
	}

	err := s.mutate(ctx, string(p.Kind)+".deleted", func(st *state) (part, error) {
		if p.ProfileID != "" && p.ProfileID != st.active.ID {
			return 0, ErrStaleConfirmation
		}
		switch p.Kind {
		case DeleteExpense:
			return s.deleteExpense(st, p.ID)
		case DeleteSource:
			return s.removeSource(st, p.ID)
		case DeleteBankAccount:
			return s.deleteBankAccount(st, p.ID)
		default:
			return s.deleteProfile(ctx, st, p.ID)
		}
	})
	if err != nil {
		return p, err
	}

	if p.Kind == DeleteProfile {
		if err := s.store.DeleteProfileData(ctx, p.ID); err != nil {
			slog.WarnContext(ctx, "Failed to remove data of deleted profile",
				"component", "workspace",
				"profile_id", p.ID,
				"error", err)
		}
	}
	return p, nil
}
