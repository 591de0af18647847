package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// AuthStatus is the outcome of a credential check.
type AuthStatus int

const (
	// AuthAccepted means credentials matched; AuthResult.Account is set.
	AuthAccepted AuthStatus = iota

	// AuthUnknownUser means no account exists for the username. No hash
	// comparison is performed in this case, mirroring the login flow this
	// replaces. Callers should present it to clients identically to a bad
	// password; the distinction exists for logging and tests.
	AuthUnknownUser

	// AuthBadPassword means the account exists but the password did not match.
	AuthBadPassword
)

// AuthResult carries the outcome of Verify. Account is non-nil only when
// Status is AuthAccepted.
type AuthResult struct {
	Status  AuthStatus
	Account *Account
}

// Authenticator turns (username, password) pairs into verified identities.
// It is stateless; all reads go through the credential store.
type Authenticator struct {
	store  Store
	logger zerolog.Logger
}

func NewAuthenticator(store Store, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		store:  store,
		logger: logger.With().Str("component", "authenticator").Logger(),
	}
}

// Verify checks credentials against the store. A storage failure is returned
// as an error and is never conflated with a rejection: callers can always
// distinguish "bad credentials" from "could not check credentials".
func (a *Authenticator) Verify(ctx context.Context, username, password string) (AuthResult, error) {
	account, err := a.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{Status: AuthUnknownUser}, nil
		}
		return AuthResult{}, fmt.Errorf("verify credentials: %w", err)
	}

	if !VerifyPassword(password, account.PasswordHash) {
		return AuthResult{Status: AuthBadPassword}, nil
	}

	return AuthResult{Status: AuthAccepted, Account: account}, nil
}
