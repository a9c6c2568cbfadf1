package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"weddingsync/internal/core"
)

// Store reads and writes the profile registry and per-profile workspaces
// under their namespaced keys. Values that fail to parse are logged and
// replaced by empty defaults; only backend failures are returned.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// KV exposes the backend for bulk operations such as vault export.
func (s *Store) KV() KV { return s.kv }

// LoadProfiles returns the profile registry and the active profile. An empty
// or unreadable registry yields the default profile; an active profile that
// is not registered falls back to the first one.
func (s *Store) LoadProfiles(ctx context.Context) ([]core.Profile, core.Profile, error) {
	profiles := []core.Profile{core.DefaultProfile()}
	stored, found, err := loadList[core.Profile](ctx, s, KeyProfiles)
	if err != nil {
		return nil, core.Profile{}, err
	}
	if found {
		var valid []core.Profile
		for _, p := range stored {
			if p.ID != "" {
				valid = append(valid, p)
			}
		}
		if len(valid) > 0 {
			profiles = valid
		}
	}

	active := profiles[0]
	var storedActive *core.Profile
	if _, err := s.load(ctx, KeyActiveProfile, &storedActive); err != nil {
		return nil, core.Profile{}, err
	}
	if storedActive != nil {
		for _, p := range profiles {
			if p.ID == storedActive.ID {
				active = p
				break
			}
		}
	}
	return profiles, active, nil
}

func (s *Store) SaveProfiles(ctx context.Context, profiles []core.Profile, active core.Profile) error {
	if err := s.save(ctx, KeyProfiles, profiles); err != nil {
		return err
	}
	return s.save(ctx, KeyActiveProfile, active)
}

// LoadWorkspace reads everything stored for one profile.
func (s *Store) LoadWorkspace(ctx context.Context, profileID string) (core.Workspace, error) {
	ws := core.Workspace{
		Expenses:     []core.Expense{},
		Settings:     core.NewSettings(),
		BankAccounts: []core.BankAccount{},
	}

	expenses, _, err := loadList[core.Expense](ctx, s, ExpensesKey(profileID))
	if err != nil {
		return ws, err
	}
	if expenses != nil {
		ws.Expenses = expenses
	}

	if _, err := s.load(ctx, SettingsKey(profileID), &ws.Settings); err != nil {
		return ws, err
	}

	banks, found, err := loadList[core.BankAccount](ctx, s, BankAccountsKey(profileID))
	if err != nil {
		return ws, err
	}
	if !found && profileID == core.DefaultProfileID {
		if banks, _, err = loadList[core.BankAccount](ctx, s, legacyDefaultBankKey); err != nil {
			return ws, err
		}
	}
	if banks != nil {
		ws.BankAccounts = banks
	}
	return ws, nil
}

func (s *Store) SaveExpenses(ctx context.Context, profileID string, expenses []core.Expense) error {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return s.save(ctx, ExpensesKey(profileID), expenses)
}

func (s *Store) SaveSettings(ctx context.Context, profileID string, settings core.Settings) error {
	if settings.AccountBudgets == nil || settings.Accounts == nil {
		settings = settings.Clone()
	}
	return s.save(ctx, SettingsKey(profileID), settings)
}

func (s *Store) SaveBankAccounts(ctx context.Context, profileID string, accounts []core.BankAccount) error {
	if accounts == nil {
		accounts = []core.BankAccount{}
	}
	return s.save(ctx, BankAccountsKey(profileID), accounts)
}

// SaveWorkspace writes all three collections of a profile.
func (s *Store) SaveWorkspace(ctx context.Context, profileID string, ws core.Workspace) error {
	if err := s.SaveExpenses(ctx, profileID, ws.Expenses); err != nil {
		return err
	}
	if err := s.SaveSettings(ctx, profileID, ws.Settings); err != nil {
		return err
	}
	return s.SaveBankAccounts(ctx, profileID, ws.BankAccounts)
}

// DeleteProfileData removes every key that belongs to one profile.
func (s *Store) DeleteProfileData(ctx context.Context, profileID string) error {
	for _, key := range ProfileKeys(profileID) {
		if err := s.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// load decodes key into dst. A missing key leaves dst untouched and reports
// false; a malformed value is logged and treated as missing.
func (s *Store) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.WarnContext(ctx, "Discarding unreadable stored value",
			"component", "storage",
			"key", key,
			"error", err)
		_ = json.Unmarshal([]byte("null"), dst)
		return false, nil
	}
	return true, nil
}

// loadList decodes a stored JSON array one element at a time. Elements that
// fail to parse are logged and skipped so the rest of the list survives.
func loadList[T any](ctx context.Context, s *Store, key string) ([]T, bool, error) {
	var raws []json.RawMessage
	found, err := s.load(ctx, key, &raws)
	if err != nil || !found {
		return nil, found, err
	}
	items := make([]T, 0, len(raws))
	for i, raw := range raws {
		if string(raw) == "null" {
			continue
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			slog.WarnContext(ctx, "Discarding unreadable stored record",
				"component", "storage",
				"key", key,
				"index", i,
				"error", err)
			continue
		}
		items = append(items, item)
	}
	return items, true, nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
