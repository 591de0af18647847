package events

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event not found")

type Event struct {
	ID          string
	ULID        string
	Name        string
	Description string
	StartsAt    time.Time
	Location    string
	ImageURL    string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateParams struct {
	ULID        string
	Name        string
	Description string
	StartsAt    time.Time
	Location    string
	ImageURL    string
	CreatedBy   string
}

type UpdateParams struct {
	Name        string
	Description string
	StartsAt    time.Time
	Location    string
	ImageURL    string
}

type Pagination struct {
	Limit int
}

type Repository interface {
	List(ctx context.Context, pagination Pagination) ([]Event, error)
	GetByULID(ctx context.Context, ulid string) (*Event, error)
	Create(ctx context.Context, params CreateParams) (*Event, error)
	Update(ctx context.Context, ulid string, params UpdateParams) error
	Delete(ctx context.Context, ulid string) error
}
