// Package store defines the persistence interface for the trading engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and development).
//
// An account record — balance, positions, transactions, watchlist — is
// read and written as one unit: SaveAccount replaces the whole record in a
// single logical write. That is what gives a trade its atomicity contract:
// a failed save leaves the persisted record exactly as it was.
package store

import (
	"context"
	"errors"

	"github.com/papertrade/engine/internal/model"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("store: account not found")

	// ErrDuplicateEmail is returned when creating an account with an
	// email that is already registered.
	ErrDuplicateEmail = errors.New("store: email already registered")
)

// Store is the persistence interface.
type Store interface {
	// CreateAccount persists a new account record.
	CreateAccount(ctx context.Context, acct *model.Account) error

	// GetAccount retrieves the full account record by id.
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	// GetAccountByEmail retrieves the full account record by email.
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)

	// ListAccounts returns every account record, in creation order.
	// Input for the ranking engine.
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// SaveAccount replaces the stored record with the given one as a
	// single write.
	SaveAccount(ctx context.Context, acct *model.Account) error
}
