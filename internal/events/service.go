package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gatherly/server/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
)

// Input is an event as submitted by a client, before sanitization.
type Input struct {
	Name        string    `validate:"required,max=200"`
	Description string    `validate:"max=4000"`
	StartsAt    time.Time `validate:"required"`
	Location    string    `validate:"required,max=200"`
	ImageURL    string
}

type ValidationError struct {
	err error
}

func (e ValidationError) Error() string { return e.err.Error() }
func (e ValidationError) Unwrap() error { return e.err }

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) List(ctx context.Context, pagination Pagination) ([]Event, error) {
	if pagination.Limit <= 0 {
		pagination.Limit = 50
	}
	return s.repo.List(ctx, pagination)
}

func (s *Service) GetByULID(ctx context.Context, id string) (*Event, error) {
	if err := validateULID(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByULID(ctx, id)
}

// Create validates and sanitizes the input, mints a public ULID and writes
// the record. The caller publishes the creation occurrence only after this
// returns successfully.
func (s *Service) Create(ctx context.Context, input Input, creatorID string) (*Event, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, ValidationError{err: err}
	}

	id, err := newULID()
	if err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, CreateParams{
		ULID:        id,
		Name:        sanitize.Text(input.Name),
		Description: sanitize.HTML(input.Description),
		StartsAt:    input.StartsAt.UTC(),
		Location:    sanitize.Text(input.Location),
		ImageURL:    strings.TrimSpace(input.ImageURL),
		CreatedBy:   creatorID,
	})
}

func (s *Service) Update(ctx context.Context, id string, input Input) error {
	if err := validateULID(id); err != nil {
		return ErrNotFound
	}
	if err := s.validate.Struct(input); err != nil {
		return ValidationError{err: err}
	}

	return s.repo.Update(ctx, id, UpdateParams{
		Name:        sanitize.Text(input.Name),
		Description: sanitize.HTML(input.Description),
		StartsAt:    input.StartsAt.UTC(),
		Location:    sanitize.Text(input.Location),
		ImageURL:    strings.TrimSpace(input.ImageURL),
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateULID(id); err != nil {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// ParseStartsAt accepts the datetime formats clients send for event start
// times: RFC 3339 or a bare "2006-01-02T15:04" local form.
func ParseStartsAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("event start time is required")
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("event start time must be ISO8601: %q", value)
	}
	return parsed, nil
}

// ParseLimit parses an optional limit query parameter, clamped to [1, 200].
func ParseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 50, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be a number")
	}
	if parsed < 1 || parsed > 200 {
		return 0, fmt.Errorf("limit must be between 1 and 200")
	}
	return parsed, nil
}

func newULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.DefaultEntropy())
	if err != nil {
		return "", fmt.Errorf("mint event id: %w", err)
	}
	return id.String(), nil
}

func validateULID(value string) error {
	if _, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(value))); err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	return nil
}
