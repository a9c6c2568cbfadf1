package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingsync/internal/core"
	"weddingsync/internal/storage/memory"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "weddingsync_expenses", ExpensesKey(core.DefaultProfileID))
	assert.Equal(t, "weddingsync_settings_p1", SettingsKey("p1"))
	assert.Equal(t, "weddingsync_bank_accounts", BankAccountsKey(""))
	assert.Contains(t, ProfileKeys(core.DefaultProfileID), "weddingsync_bank_accounts_default")
	assert.Len(t, ProfileKeys("p1"), 3)
}

func TestLoadProfilesDefaults(t *testing.T) {
	ctx := context.Background()
	cases := map[string]map[string]string{
		"empty":       {},
		"unreadable":  {KeyProfiles: "{not json"},
		"empty list":  {KeyProfiles: "[]"},
		"missing ids": {KeyProfiles: `[{"name":"ghost"}]`},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewStore(memory.NewWithData(data))
			profiles, active, err := s.LoadProfiles(ctx)
			require.NoError(t, err)
			assert.Equal(t, []core.Profile{core.DefaultProfile()}, profiles)
			assert.Equal(t, core.DefaultProfile(), active)
		})
	}
}

func TestLoadProfilesActive(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memory.NewWithData(map[string]string{
		KeyProfiles:      `[{"id":"a","name":"Anna"},{"id":"b","name":"Ben"}]`,
		KeyActiveProfile: `{"id":"b","name":"Ben"}`,
	}))
	profiles, active, err := s.LoadProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Equal(t, "b", active.ID)

	require.NoError(t, s.kv.Set(ctx, KeyActiveProfile, []byte(`{"id":"gone"}`)))
	_, active, err = s.LoadProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", active.ID)
}

func TestWorkspaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := NewStore(kv)

	settings := core.NewSettings()
	settings.Accounts = []string{"Savings"}
	settings.AccountBudgets["Savings"] = core.Money{Cents: 100000}
	ws := core.Workspace{
		Expenses: []core.Expense{{ID: "e1", Name: "Cake", Category: "Catering", Date: "2024-02-02",
			TotalAmount: core.Money{Cents: 25000}, AdvancePaid: core.Money{Cents: 5000}, Account: "Savings"}},
		Settings:     settings,
		BankAccounts: []core.BankAccount{{ID: "b1", Name: "Checking"}},
	}
	require.NoError(t, s.SaveWorkspace(ctx, "p1", ws))

	raw, ok, _ := kv.Get(ctx, "weddingsync_settings_p1")
	require.True(t, ok)
	assert.JSONEq(t, `{"accountBudgets":{"Savings":1000},"accounts":["Savings"]}`, string(raw))

	got, err := s.LoadWorkspace(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, ws, got)

	other, err := s.LoadWorkspace(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, other.Expenses)
	assert.NotNil(t, other.Settings.AccountBudgets)
	assert.NotNil(t, other.BankAccounts)

	require.NoError(t, s.DeleteProfileData(ctx, "p1"))
	keys, _ := kv.Keys(ctx, Prefix)
	assert.Empty(t, keys)
}

func TestLoadWorkspaceCorruptValues(t *testing.T) {
	s := NewStore(memory.NewWithData(map[string]string{
		"weddingsync_expenses": `[{"id":"x","name":1},
			{"id":"e1","name":"Cake","category":"Catering","date":"2024-02-02","totalAmount":250},
			{"id":"e2","name":"Venue","date":20240201},
			null]`,
		"weddingsync_settings":      `{"accounts":["Savings"],"accountBudgets":{"Savings":"abc"}}`,
		"weddingsync_bank_accounts": `[{"id":"b1","name":"Checking"},{"id":"b2","name":["x"]},"junk"]`,
	}))
	ws, err := s.LoadWorkspace(context.Background(), core.DefaultProfileID)
	require.NoError(t, err)
	require.Len(t, ws.Expenses, 1)
	assert.Equal(t, "e1", ws.Expenses[0].ID)
	assert.Equal(t, core.Money{Cents: 25000}, ws.Expenses[0].TotalAmount)
	require.Len(t, ws.BankAccounts, 1)
	assert.Equal(t, "Checking", ws.BankAccounts[0].Name)
	assert.Equal(t, []string{"Savings"}, ws.Settings.Accounts)
	assert.Zero(t, ws.Settings.AccountBudgets["Savings"].Cents)
}

func TestLoadWorkspaceNonArrayLedger(t *testing.T) {
	s := NewStore(memory.NewWithData(map[string]string{
		"weddingsync_expenses": `{"id":"e1"}`,
	}))
	ws, err := s.LoadWorkspace(context.Background(), core.DefaultProfileID)
	require.NoError(t, err)
	assert.NotNil(t, ws.Expenses)
	assert.Empty(t, ws.Expenses)
}

func TestLoadWorkspaceLegacyBankKey(t *testing.T) {
	banks, _ := json.Marshal([]core.BankAccount{{ID: "b1", Name: "Legacy"}})
	s := NewStore(memory.NewWithData(map[string]string{
		"weddingsync_bank_accounts_default": string(banks),
	}))
	ws, err := s.LoadWorkspace(context.Background(), core.DefaultProfileID)
	require.NoError(t, err)
	require.Len(t, ws.BankAccounts, 1)
	assert.Equal(t, "Legacy", ws.BankAccounts[0].Name)
}

type failingKV struct{ *memory.Store }

var errBackend = errors.New("disk full")

func (failingKV) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBackend }
func (failingKV) Set(context.Context, string, []byte) error         { return errBackend }

func TestBackendErrorsPropagate(t *testing.T) {
	s := NewStore(failingKV{Store: memory.New()})
	_, _, err := s.LoadProfiles(context.Background())
	assert.ErrorIs(t, err, errBackend)

	err = s.SaveExpenses(context.Background(), "p1", nil)
	assert.ErrorIs(t, err, errBackend)
}
