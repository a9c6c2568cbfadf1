package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"weddingsync/internal/core"
	"weddingsync/internal/report"
)

// Persister mirrors the service state into the key/value store.
// *storage.Store satisfies it.
type Persister interface {
	LoadProfiles(ctx context.Context) ([]core.Profile, core.Profile, error)
	SaveProfiles(ctx context.Context, profiles []core.Profile, active core.Profile) error
	LoadWorkspace(ctx context.Context, profileID string) (core.Workspace, error)
	SaveExpenses(ctx context.Context, profileID string, expenses []core.Expense) error
	SaveSettings(ctx context.Context, profileID string, settings core.Settings) error
	SaveBankAccounts(ctx context.Context, profileID string, accounts []core.BankAccount) error
	DeleteProfileData(ctx context.Context, profileID string) error
}

// Subscriber is told about every committed mutation. Its errors are logged
// and never undo the mutation.
type Subscriber interface {
	ProfileChanged(ctx context.Context, ev core.ChangeEvent) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, ev core.ChangeEvent) error

func (f SubscriberFunc) ProfileChanged(ctx context.Context, ev core.ChangeEvent) error {
	return f(ctx, ev)
}

type Option func(*WorkspaceService)

func WithClock(now func() time.Time) Option {
	return func(s *WorkspaceService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *WorkspaceService) { s.newID = newID }
}

func WithSubscriber(sub Subscriber) Option {
	return func(s *WorkspaceService) { s.subs = append(s.subs, sub) }
}

// Snapshot is a deep copy of the active profile's state.
type Snapshot struct {
	Profiles     []core.Profile     `json:"profiles"`
	Active       core.Profile       `json:"activeProfile"`
	Expenses     []core.Expense     `json:"expenses"`
	Settings     core.Settings      `json:"settings"`
	BankAccounts []core.BankAccount `json:"bankAccounts"`
	Revision     int64              `json:"revision"`
}

type state struct {
	profiles []core.Profile
	active   core.Profile
	ws       core.Workspace
	// staged holds analyses waiting for confirmation. It is never persisted
	// but commits together with the rest of a mutation.
	staged map[string]*core.BankAnalysis
}

func (st state) clone() state {
	c := state{
		profiles: append([]core.Profile(nil), st.profiles...),
		active:   st.active,
		ws: core.Workspace{
			Expenses:     append([]core.Expense{}, st.ws.Expenses...),
			Settings:     st.ws.Settings.Clone(),
			BankAccounts: make([]core.BankAccount, len(st.ws.BankAccounts)),
		},
		staged: make(map[string]*core.BankAnalysis, len(st.staged)),
	}
	for i, a := range st.ws.BankAccounts {
		a.LastAnalysis = a.LastAnalysis.Clone()
		c.ws.BankAccounts[i] = a
	}
	for id, a := range st.staged {
		c.staged[id] = a
	}
	return c
}

type part uint8

const (
	partExpenses part = 1 << iota
	partSettings
	partBanks
	partProfiles
)

// WorkspaceService is the single state container of the application. It
// holds the profile registry and the active profile's workspace, serialises
// every mutation, persists the touched collections before committing and then
// notifies subscribers.
type WorkspaceService struct {
	mu       sync.Mutex
	store    Persister
	subs     []Subscriber
	now      func() time.Time
	newID    func() string
	st       state
	revision int64
	pending  map[string]PendingDeletion
}

// Open loads the profile registry and the active workspace.
func Open(ctx context.Context, store Persister, opts ...Option) (*WorkspaceService, error) {
	s := &WorkspaceService{
		store:   store,
		now:     time.Now,
		newID:   uuid.NewString,
		pending: map[string]PendingDeletion{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload discards in-memory state and reads everything back from storage.
// Used after a vault restore.
func (s *WorkspaceService) Reload(ctx context.Context) error {
	profiles, active, err := s.store.LoadProfiles(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	ws, err := s.store.LoadWorkspace(ctx, active.ID)
	if err != nil {
		return fmt.Errorf("load workspace %s: %w", active.ID, err)
	}

	s.mu.Lock()
	s.st = state{profiles: profiles, active: active, ws: ws, staged: map[string]*core.BankAnalysis{}}
	s.revision++
	s.pending = map[string]PendingDeletion{}
	ev := s.eventLocked("workspace.reloaded")
	s.mu.Unlock()

	s.notify(ctx, ev)
	return nil
}

func (s *WorkspaceService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.st.clone()
	return Snapshot{
		Profiles:     c.profiles,
		Active:       c.active,
		Expenses:     c.ws.Expenses,
		Settings:     c.ws.Settings,
		BankAccounts: c.ws.BankAccounts,
		Revision:     s.revision,
	}
}

// Revision returns the profile id and revision of the current state.
func (s *WorkspaceService) Revision() (string, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.active.ID, s.revision
}

// Totals recomputes every report of the active profile.
func (s *WorkspaceService) Totals() report.Totals {
	snap := s.Snapshot()
	return report.Compute(snap.Expenses, snap.Settings, core.Categories)
}

// mutate runs fn on a copy of the state, persists the parts fn reports as
// touched and commits the copy only when every write succeeded. A fn that
// touches nothing commits nothing.
func (s *WorkspaceService) mutate(ctx context.Context, reason string, fn func(st *state) (part, error)) error {
	s.mu.Lock()
	next := s.st.clone()
	touched, err := fn(&next)
	if err != nil || touched == 0 {
		s.mu.Unlock()
		return err
	}
	if err := s.persist(ctx, next, touched); err != nil {
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Failed to persist workspace",
			"component", "workspace",
			"reason", reason,
			"profile_id", next.active.ID,
			"error", err)
		return err
	}
	s.st = next
	s.revision++
	ev := s.eventLocked(reason)
	s.mu.Unlock()

	s.notify(ctx, ev)
	return nil
}

func (s *WorkspaceService) persist(ctx context.Context, st state, touched part) error {
	id := st.active.ID
	if touched&partProfiles != 0 {
		if err := s.store.SaveProfiles(ctx, st.profiles, st.active); err != nil {
			return fmt.Errorf("save profiles: %w", err)
		}
	}
	if touched&partExpenses != 0 {
		if err := s.store.SaveExpenses(ctx, id, st.ws.Expenses); err != nil {
			return fmt.Errorf("save expenses: %w", err)
		}
	}
	if touched&partSettings != 0 {
		if err := s.store.SaveSettings(ctx, id, st.ws.Settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	if touched&partBanks != 0 {
		if err := s.store.SaveBankAccounts(ctx, id, st.ws.BankAccounts); err != nil {
			return fmt.Errorf("save bank accounts: %w", err)
		}
	}
	return nil
}

func (s *WorkspaceService) eventLocked(reason string) core.ChangeEvent {
	return core.ChangeEvent{
		ProfileID: s.st.active.ID,
		Revision:  s.revision,
		Reason:    reason,
		Timestamp: s.now().UTC(),
	}
}

func (s *WorkspaceService) notify(ctx context.Context, ev core.ChangeEvent) {
	for _, sub := range s.subs {
		if err := sub.ProfileChanged(ctx, ev); err != nil {
			slog.WarnContext(ctx, "Change subscriber failed",
				"component", "workspace",
				"reason", ev.Reason,
				"revision", ev.Revision,
				"error", err)
		}
	}
}

func (s *WorkspaceService) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *WorkspaceService) today() core.Date {
	return core.Today(s.now())
}

func findExpense(expenses []core.Expense, id string) int {
	for i, e := range expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func findBank(accounts []core.BankAccount, id string) int {
	for i, a := range accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func findProfile(profiles []core.Profile, id string) int {
	for i, p := range profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
