package postgres

import (
	"context"
	"fmt"

	"github.com/gatherly/server/internal/accounts"
	"github.com/gatherly/server/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the domain storage boundaries with a PostgreSQL
// backend. The pool is shared across all connections.
type Repository struct {
	pool *pgxpool.Pool

	accounts *AccountRepository
	events   *EventRepository
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{
		pool:     pool,
		accounts: &AccountRepository{db: pool},
		events:   &EventRepository{db: pool},
	}, nil
}

// Accounts returns the credential store.
func (r *Repository) Accounts() accounts.Store {
	return r.accounts
}

// Events returns the event repository.
func (r *Repository) Events() events.Repository {
	return r.events
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, so the repositories
// do not care whether they run on the pool or inside a transaction.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type AccountRepository struct {
	db queryer
}

type EventRepository struct {
	db queryer
}
