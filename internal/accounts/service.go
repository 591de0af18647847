package accounts

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	// MinUsernameLength and MinPasswordLength are the signup policy floors.
	MinUsernameLength = 5
	MinPasswordLength = 5
)

// SignupParams are the raw inputs to Signup, validated before any hashing.
type SignupParams struct {
	Username string `validate:"required,min=5,max=64"`
	Password string `validate:"required,min=5,max=72"`
	Email    string `validate:"required,email"`
}

// ValidationError wraps validator output so handlers can map it to a 400
// without depending on the validator package.
type ValidationError struct {
	err error
}

func (e ValidationError) Error() string { return e.err.Error() }
func (e ValidationError) Unwrap() error { return e.err }

// Service handles account lifecycle operations.
type Service struct {
	store    Store
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		validate: validator.New(),
		logger:   logger.With().Str("component", "accounts").Logger(),
	}
}

// Signup validates the inputs, hashes the password and creates the account.
// Duplicate usernames surface as ErrDuplicateUsername from the store; the
// caller is never the arbiter of the uniqueness race.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*Account, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, ValidationError{err: err}
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.store.Create(ctx, CreateParams{
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info().Str("username", account.Username).Msg("account created")
	return account, nil
}
