package storage

import "weddingsync/internal/core"

const (
	Prefix = "weddingsync_"

	KeyProfiles      = Prefix + "profiles"
	KeyActiveProfile = Prefix + "active_profile"

	baseExpenses     = Prefix + "expenses"
	baseSettings     = Prefix + "settings"
	baseBankAccounts = Prefix + "bank_accounts"
)

// legacyDefaultBankKey is where older snapshots kept the default profile's
// bank accounts. It is only read, never written.
const legacyDefaultBankKey = baseBankAccounts + "_" + core.DefaultProfileID

func scoped(base, profileID string) string {
	if profileID == "" || profileID == core.DefaultProfileID {
		return base
	}
	return base + "_" + profileID
}

func ExpensesKey(profileID string) string     { return scoped(baseExpenses, profileID) }
func SettingsKey(profileID string) string     { return scoped(baseSettings, profileID) }
func BankAccountsKey(profileID string) string { return scoped(baseBankAccounts, profileID) }

// ProfileKeys returns every key holding data of one profile.
func ProfileKeys(profileID string) []string {
	keys := []string{ExpensesKey(profileID), SettingsKey(profileID), BankAccountsKey(profileID)}
	if profileID == core.DefaultProfileID {
		keys = append(keys, legacyDefaultBankKey)
	}
	return keys
}
