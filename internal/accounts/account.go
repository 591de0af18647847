package accounts

import (
	"context"
	"errors"
	"time"
)

// Domain-specific errors for account operations.
var (
	// ErrNotFound is returned when an account lookup fails.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateUsername is returned when a signup races or repeats an
	// existing username. The database uniqueness constraint is the arbiter.
	ErrDuplicateUsername = errors.New("username is already taken")
)

// Account is a user identity record. PasswordHash is opaque bcrypt output and
// never leaves the accounts package in clear-comparable form.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type CreateParams struct {
	Username     string
	Email        string
	PasswordHash string
}

// Store is the credential store boundary. Lookups are read-only; Create
// enforces username uniqueness and reports violations as
// ErrDuplicateUsername.
type Store interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, params CreateParams) (*Account, error)
}
