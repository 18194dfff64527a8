package store

import (
	"context"
	"errors"

	"github.com/tavernworks/doorman/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a Tx facility so multi-step read-modify-write sequences on a
// user record cannot interleave with concurrent writers.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by its unique email (exact,
	// case-sensitive match).
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserBySessionID resolves an active session token to its holder.
	GetUserBySessionID(ctx context.Context, sessionID string) (domain.User, error)

	// GetUserByResetToken resolves an outstanding reset token to its holder.
	GetUserByResetToken(ctx context.Context, token string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists if the email is already registered.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateSessionID sets or clears (nil) the session token and bumps
	// updated_at. Returns ErrNotFound if the user id is absent.
	UpdateSessionID(ctx context.Context, userID string, sessionID *string) error

	// UpdateResetToken sets or clears (nil) the reset token and bumps
	// updated_at. Returns ErrNotFound if the user id is absent.
	UpdateResetToken(ctx context.Context, userID string, token *string) error

	// RedeemResetToken swaps in the new password hash and clears the reset
	// token in one statement, keyed on the token itself. Returns ErrNotFound
	// when no user holds the token, so a consumed token cannot be redeemed
	// twice.
	RedeemResetToken(ctx context.Context, token string, newHash string) error
}
