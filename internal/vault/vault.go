// Package vault exports every stored key into one JSON document and
// restores such a document over the current store.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"weddingsync/internal/core"
	"weddingsync/internal/storage"
)

const (
	Version       = "1.1"
	legacyVersion = "1.0"
)

var ErrInvalidVault = errors.New("invalid vault structure")

// Document is the exported file. The three maps are keyed by storage key
// and hold the stored JSON untouched.
type Document struct {
	Version       string                     `json:"version"`
	Timestamp     string                     `json:"timestamp"`
	Profiles      []core.Profile             `json:"profiles" validate:"required"`
	ActiveProfile *core.Profile              `json:"activeProfile"`
	Expenses      map[string]json.RawMessage `json:"expenses" validate:"required"`
	Settings      map[string]json.RawMessage `json:"settings" validate:"required"`
	BankAccounts  map[string]json.RawMessage `json:"bankAccounts,omitempty"`
}

// Preview summarises a document before it is restored.
type Preview struct {
	Version          string   `json:"version"`
	Timestamp        string   `json:"timestamp"`
	ProfileCount     int      `json:"profileCount"`
	ExpenseCount     int      `json:"expenseCount"`
	BankAccountCount int      `json:"bankAccountCount"`
	ProfileNames     []string `json:"profileNames"`
}

// Reloader re-reads state after a restore rewrote the store.
type Reloader interface {
	Reload(ctx context.Context) error
}

type Vault struct {
	kv       storage.KV
	reloader Reloader
	validate *validator.Validate
	now      func() time.Time
}

func New(kv storage.KV, reloader Reloader) *Vault {
	return &Vault{
		kv:       kv,
		reloader: reloader,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Export collects the registry and every per-profile collection currently
// stored. Values that are not valid JSON are skipped.
func (v *Vault) Export(ctx context.Context) (Document, error) {
	doc := Document{
		Version:      Version,
		Timestamp:    v.now().UTC().Format(time.RFC3339Nano),
		Profiles:     []core.Profile{},
		Expenses:     map[string]json.RawMessage{},
		Settings:     map[string]json.RawMessage{},
		BankAccounts: map[string]json.RawMessage{},
	}

	keys, err := v.kv.Keys(ctx, storage.Prefix)
	if err != nil {
		return Document{}, fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		raw, ok, err := v.kv.Get(ctx, key)
		if err != nil {
			return Document{}, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if !json.Valid(raw) {
			slog.WarnContext(ctx, "Skipping unreadable value in export",
				"component", "vault",
				"key", key)
			continue
		}
		switch {
		case key == storage.KeyProfiles:
			var profiles []core.Profile
			if err := json.Unmarshal(raw, &profiles); err == nil && profiles != nil {
				doc.Profiles = profiles
			}
		case key == storage.KeyActiveProfile:
			var active *core.Profile
			if err := json.Unmarshal(raw, &active); err == nil {
				doc.ActiveProfile = active
			}
		default:
			if m := collectionFor(&doc, key); m != nil {
				m[key] = json.RawMessage(raw)
			}
		}
	}
	return doc, nil
}

// WriteTo encodes doc as indented JSON.
func WriteTo(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}
	return nil
}

// Decode reads and validates a vault document.
func (v *Vault) Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidVault, err)
	}
	if err := v.check(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (v *Vault) check(doc Document) error {
	if err := v.validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVault, err)
	}
	for _, group := range []struct {
		name string
		base string
		m    map[string]json.RawMessage
	}{
		{"expenses", storage.ExpensesKey(core.DefaultProfileID), doc.Expenses},
		{"settings", storage.SettingsKey(core.DefaultProfileID), doc.Settings},
		{"bankAccounts", storage.BankAccountsKey(core.DefaultProfileID), doc.BankAccounts},
	} {
		for key := range group.m {
			if !strings.HasPrefix(key, group.base) {
				return fmt.Errorf("%w: %s key %q outside its namespace", ErrInvalidVault, group.name, key)
			}
		}
	}
	return nil
}

// Preview counts what a restore would bring in.
func (v *Vault) Preview(doc Document) (Preview, error) {
	if err := v.check(doc); err != nil {
		return Preview{}, err
	}
	p := Preview{
		Version:          doc.Version,
		Timestamp:        doc.Timestamp,
		ProfileCount:     len(doc.Profiles),
		ExpenseCount:     countItems(doc.Expenses),
		BankAccountCount: countItems(doc.BankAccounts),
		ProfileNames:     make([]string, 0, len(doc.Profiles)),
	}
	if p.Version == "" {
		p.Version = legacyVersion
	}
	if p.Timestamp == "" {
		p.Timestamp = v.now().UTC().Format(time.RFC3339Nano)
	}
	for _, prof := range doc.Profiles {
		p.ProfileNames = append(p.ProfileNames, prof.Name)
	}
	return p, nil
}

// Restore replaces every stored key with the document's content and asks
// the reloader to pick the new state up. Nothing is written when the
// document is invalid.
func (v *Vault) Restore(ctx context.Context, doc Document) error {
	if err := v.check(doc); err != nil {
		return err
	}

	keys, err := v.kv.Keys(ctx, storage.Prefix)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		if err := v.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}

	if err := v.setJSON(ctx, storage.KeyProfiles, doc.Profiles); err != nil {
		return err
	}
	active := doc.ActiveProfile
	if active == nil && len(doc.Profiles) > 0 {
		active = &doc.Profiles[0]
	}
	if active != nil {
		if err := v.setJSON(ctx, storage.KeyActiveProfile, active); err != nil {
			return err
		}
	}
	for _, m := range []map[string]json.RawMessage{doc.Expenses, doc.Settings, doc.BankAccounts} {
		for key, raw := range m {
			if err := v.kv.Set(ctx, key, raw); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
		}
	}

	slog.InfoContext(ctx, "Vault restored",
		"component", "vault",
		"profiles", len(doc.Profiles),
		"expense_keys", len(doc.Expenses))

	if v.reloader != nil {
		if err := v.reloader.Reload(ctx); err != nil {
			return fmt.Errorf("reload after restore: %w", err)
		}
	}
	return nil
}

func (v *Vault) setJSON(ctx context.Context, key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := v.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func collectionFor(doc *Document, key string) map[string]json.RawMessage {
	switch {
	case strings.HasPrefix(key, storage.ExpensesKey(core.DefaultProfileID)):
		return doc.Expenses
	case strings.HasPrefix(key, storage.SettingsKey(core.DefaultProfileID)):
		return doc.Settings
	case strings.HasPrefix(key, storage.BankAccountsKey(core.DefaultProfileID)):
		return doc.BankAccounts
	}
	return nil
}

func countItems(m map[string]json.RawMessage) int {
	n := 0
	for _, raw := range m {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			n += len(items)
		}
	}
	return n
}
