// Package registry holds the static account table: which accounts may
// deliver signals and which symmetric key, if any, each one uses. It is
// built once at startup and never mutated, so lookups need no locking.
package registry

import (
	"errors"
	"fmt"

	"github.com/oshokin/sia-bridge/internal/protocol/siacrypt"
)

// errEmptyAccountID is returned when a configured account has no identifier.
var errEmptyAccountID = errors.New("account with empty identifier")

// Account pairs an identifier with its optional symmetric key.
type Account struct {
	// ID is the case-sensitive account identifier panels present.
	ID string
	// Key is the symmetric key; nil means the account sends plaintext only.
	Key []byte
}

// Registry answers authorization and key-lookup queries.
type Registry struct {
	accounts map[string]Account
}

// New builds a registry from the configured accounts. Keys must be absent
// or select a valid cipher strength; duplicates are rejected so a
// misconfiguration cannot silently shadow a key.
func New(accounts []Account) (*Registry, error) {
	table := make(map[string]Account, len(accounts))

	for _, account := range accounts {
		if account.ID == "" {
			return nil, errEmptyAccountID
		}

		if _, exists := table[account.ID]; exists {
			return nil, fmt.Errorf("duplicate account %q", account.ID)
		}

		if len(account.Key) > 0 && !siacrypt.ValidKeySize(account.Key) {
			return nil, fmt.Errorf("account %q: key must be 16, 24 or 32 bytes, got %d",
				account.ID, len(account.Key))
		}

		table[account.ID] = account
	}

	return &Registry{accounts: table}, nil
}

// IsAllowed reports whether the account may deliver signals.
// Lookup is exact-match and case-sensitive.
func (r *Registry) IsAllowed(accountID string) bool {
	_, ok := r.accounts[accountID]

	return ok
}

// KeyFor returns the account's symmetric key. The second result is false
// when the account is unknown or sends plaintext only.
func (r *Registry) KeyFor(accountID string) ([]byte, bool) {
	account, ok := r.accounts[accountID]
	if !ok || len(account.Key) == 0 {
		return nil, false
	}

	return account.Key, true
}

// Accounts returns the identifiers in the registry, for the status surface.
func (r *Registry) Accounts() []string {
	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}

	return ids
}

// EncryptedAccounts returns the identifiers that require encryption.
func (r *Registry) EncryptedAccounts() []string {
	ids := make([]string, 0, len(r.accounts))

	for id, account := range r.accounts {
		if len(account.Key) > 0 {
			ids = append(ids, id)
		}
	}

	return ids
}
