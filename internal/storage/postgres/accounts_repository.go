package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherly/server/internal/accounts"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ accounts.Store = (*AccountRepository)(nil)

type accountRow struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    pgtype.Timestamptz
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*accounts.Account, error) {
	row := r.db.QueryRow(ctx, `
SELECT id, username, email, password_hash, created_at
  FROM users
 WHERE username = $1
 LIMIT 1
`, username)
	return scanAccount(row, "find account by username")
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*accounts.Account, error) {
	row := r.db.QueryRow(ctx, `
SELECT id, username, email, password_hash, created_at
  FROM users
 WHERE id = $1
 LIMIT 1
`, id)
	return scanAccount(row, "find account by id")
}

// Create inserts the account. The unique index on username is the arbiter of
// concurrent signups; a unique violation maps to ErrDuplicateUsername.
func (r *AccountRepository) Create(ctx context.Context, params accounts.CreateParams) (*accounts.Account, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO users (id, username, email, password_hash, created_at)
VALUES (gen_random_uuid(), $1, $2, $3, now())
RETURNING id, username, email, password_hash, created_at
`, params.Username, params.Email, params.PasswordHash)

	account, err := scanAccount(row, "create account")
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, accounts.ErrDuplicateUsername
		}
		return nil, err
	}
	return account, nil
}

func scanAccount(row pgx.Row, op string) (*accounts.Account, error) {
	var data accountRow
	if err := row.Scan(
		&data.ID,
		&data.Username,
		&data.Email,
		&data.PasswordHash,
		&data.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, accounts.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &accounts.Account{
		ID:           data.ID,
		Username:     data.Username,
		Email:        data.Email,
		PasswordHash: data.PasswordHash,
		CreatedAt:    data.CreatedAt.Time,
	}, nil
}
