package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	DefaultProfileID   = "default"
	DefaultProfileName = "Main User"

	// DefaultCategory receives AI-created rows and receipts with an unknown category.
	DefaultCategory = "Other"

	// MaxBankTransactions bounds topTransactions when the assistant records entries.
	MaxBankTransactions = 10
)

const (
	Debit  TransactionType = "debit"
	Credit TransactionType = "credit"
)

const (
	TargetBudget TargetType = "budget"
	TargetBank   TargetType = "bank"
)

// Categories is the fixed, ordered category list every report iterates.
var Categories = []string{
	"Venue",
	"Catering",
	"Photography",
	"Attire",
	"Decor",
	"Flowers",
	"Music",
	"Jewelry",
	"Invitations",
	"Transport",
	"Beauty",
	"Gifts",
	"Honeymoon",
	DefaultCategory,
}

type (
	TransactionType string

	// TargetType tells assistant actions whether a name refers to a funding
	// source (and the ledger) or to a bank account.
	TargetType string

	Profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Expense struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Category    string `json:"category"`
		Date        Date   `json:"date"`
		TotalAmount Money  `json:"totalAmount"`
		AdvancePaid Money  `json:"advancePaid"`
		Account     string `json:"account"` // funding source name
		Notes       string `json:"notes,omitempty"`
		UpdatedAt   string `json:"updatedAt,omitempty"`
	}

	// Settings is the per-profile funding source configuration.
	Settings struct {
		AccountBudgets map[string]Money `json:"accountBudgets"`
		Accounts       []string         `json:"accounts"`
	}

	BankTransaction struct {
		Date        string          `json:"date"`
		Description string          `json:"description"`
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
	}

	BankAnalysis struct {
		TotalDebits     Money             `json:"totalDebits"`
		TotalCredits    Money             `json:"totalCredits"`
		OpeningBalance  Money             `json:"openingBalance"`
		ClosingBalance  Money             `json:"closingBalance"`
		StatementPeriod string            `json:"statementPeriod"`
		TopTransactions []BankTransaction `json:"topTransactions"`
	}

	BankAccount struct {
		ID           string        `json:"id"`
		Name         string        `json:"name"`
		Institution  string        `json:"institution,omitempty"`
		LastAnalysis *BankAnalysis `json:"lastAnalysis,omitempty"`
		UpdatedAt    string        `json:"updatedAt,omitempty"`
	}

	// Workspace is everything stored for one profile.
	Workspace struct {
		Expenses     []Expense
		Settings     Settings
		BankAccounts []BankAccount
	}
)

var (
	ErrEmptyName        = errors.New("empty name")
	ErrNameTooLong      = errors.New("name too long (max 200 characters)")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidDate      = errors.New("invalid date")
	ErrNegativeAmount   = errors.New("amounts cannot be negative")
	ErrInvalidTarget    = errors.New("invalid target type")
	ErrInvalidTxType    = errors.New("invalid transaction type")
	ErrEmptySourceName  = errors.New("empty funding source name")
	ErrEmptyProfileName = errors.New("empty profile name")
)

func DefaultProfile() Profile {
	return Profile{ID: DefaultProfileID, Name: DefaultProfileName}
}

var incomeKeywords = []string{"receive", "income", "gift", "from"}

// IsIncome reports whether a transaction description reads as money coming in.
func IsIncome(name string) bool {
	lower := strings.ToLower(name)
	for _, k := range incomeKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IsCategory reports whether name is one of Categories.
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

func (t TargetType) Validate() error {
	switch t {
	case TargetBudget, TargetBank:
		return nil
	default:
		return ErrInvalidTarget
	}
}

// Settled reports whether nothing is left to pay.
func (e Expense) Settled() bool {
	return e.TotalAmount.Cents-e.AdvancePaid.Cents <= 0
}

// Pending is what is still owed on the expense.
func (e Expense) Pending() Money {
	return Money{Cents: e.TotalAmount.Cents - e.AdvancePaid.Cents}
}

func (e Expense) Validate() error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	if !IsCategory(e.Category) {
		return ErrInvalidCategory
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.TotalAmount.Cents < 0 || e.AdvancePaid.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (t BankTransaction) Validate() error {
	switch t.Type {
	case Debit, Credit:
		return nil
	default:
		return ErrInvalidTxType
	}
}

// Clone returns a deep copy so callers can hand the analysis out safely.
func (a *BankAnalysis) Clone() *BankAnalysis {
	if a == nil {
		return nil
	}
	c := *a
	c.TopTransactions = append([]BankTransaction(nil), a.TopTransactions...)
	return &c
}

// NewSettings returns empty, non-nil settings.
func NewSettings() Settings {
	return Settings{AccountBudgets: map[string]Money{}, Accounts: []string{}}
}

// HasSource reports whether name is a configured funding source.
func (s Settings) HasSource(name string) bool {
	for _, a := range s.Accounts {
		if a == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	c := NewSettings()
	for k, v := range s.AccountBudgets {
		c.AccountBudgets[k] = v
	}
	c.Accounts = append(c.Accounts, s.Accounts...)
	return c
}

// UnmarshalJSON decodes each field on its own so that a malformed
// accountBudgets does not throw away a valid accounts list and vice versa.
func (s *Settings) UnmarshalJSON(b []byte) error {
	*s = NewSettings()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	if v, ok := raw["accountBudgets"]; ok {
		var budgets map[string]Money
		if err := json.Unmarshal(v, &budgets); err == nil && budgets != nil {
			s.AccountBudgets = budgets
		}
	}
	if v, ok := raw["accounts"]; ok {
		var accounts []string
		if err := json.Unmarshal(v, &accounts); err == nil && accounts != nil {
			s.Accounts = accounts
		}
	}
	return nil
}

// Today returns the current date in YYYY-MM-DD form.
func Today(now time.Time) Date {
	return Date(now.Format(DateLayout))
}

// ChangeEvent announces that a profile's stored state moved to a new revision.
type ChangeEvent struct {
	ProfileID string    `json:"profileId"`
	Revision  int64     `json:"revision"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
