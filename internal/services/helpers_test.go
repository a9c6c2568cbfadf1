package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"weddingsync/internal/core"
	"weddingsync/internal/storage"
	"weddingsync/internal/storage/memory"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []core.ChangeEvent
}

func (r *recorder) ProfileChanged(_ context.Context, ev core.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Reason)
	}
	return out
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type fixture struct {
	svc   *WorkspaceService
	kv    *memory.Store
	store *storage.Store
	rec   *recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	kv := memory.New()
	store := storage.NewStore(kv)
	rec := &recorder{}
	svc, err := Open(context.Background(), store,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
		WithSubscriber(rec),
	)
	require.NoError(t, err)
	return fixture{svc: svc, kv: kv, store: store, rec: rec}
}

// withSource adds a funding source with the given limit in euros.
func (f fixture) withSource(t *testing.T, name string, euros int64) fixture {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.AddSource(ctx, name))
	require.NoError(t, f.svc.SetBudget(ctx, name, core.Money{Cents: euros * 100}))
	return f
}

func eur(euros int64) core.Money { return core.Money{Cents: euros * 100} }

func draft(name, category, date string, total, paid int64) core.Expense {
	return core.Expense{
		Name:        name,
		Category:    category,
		Date:        core.Date(date),
		TotalAmount: eur(total),
		AdvancePaid: eur(paid),
	}
}

var errDiskFull = errors.New("disk full")

// flakyStore fails every save once armed.
type flakyStore struct {
	*storage.Store
	fail bool
}

func (f *flakyStore) SaveExpenses(ctx context.Context, id string, e []core.Expense) error {
	if f.fail {
		return errDiskFull
	}
	return f.Store.SaveExpenses(ctx, id, e)
}

func (f *flakyStore) SaveSettings(ctx context.Context, id string, s core.Settings) error {
	if f.fail {
		return errDiskFull
	}
	return f.Store.SaveSettings(ctx, id, s)
}

func (f *flakyStore) SaveBankAccounts(ctx context.Context, id string, a []core.BankAccount) error {
	if f.fail {
		return errDiskFull
	}
	return f.Store.SaveBankAccounts(ctx, id, a)
}

func (f *flakyStore) SaveProfiles(ctx context.Context, profiles []core.Profile, active core.Profile) error {
	if f.fail {
		return errDiskFull
	}
	return f.Store.SaveProfiles(ctx, profiles, active)
}
