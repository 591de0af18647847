package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherly/server/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ events.Repository = (*EventRepository)(nil)

type eventRow struct {
	ID          string
	ULID        string
	Name        string
	Description *string
	StartsAt    pgtype.Timestamptz
	Location    string
	ImageURL    *string
	CreatedBy   string
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

const eventColumns = `id, ulid, name, description, starts_at, location, image_url, created_by, created_at, updated_at`

func (r *EventRepository) List(ctx context.Context, pagination events.Pagination) ([]events.Event, error) {
	limit := pagination.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
SELECT `+eventColumns+`
  FROM events
 ORDER BY created_at DESC, ulid DESC
 LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		items = append(items, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return items, nil
}

func (r *EventRepository) GetByULID(ctx context.Context, ulid string) (*events.Event, error) {
	row := r.db.QueryRow(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE ulid = $1
 LIMIT 1
`, ulid)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO events (id, ulid, name, description, starts_at, location, image_url, created_by, created_at, updated_at)
VALUES (gen_random_uuid(), $1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, now(), now())
RETURNING `+eventColumns+`
`,
		params.ULID,
		params.Name,
		params.Description,
		params.StartsAt,
		params.Location,
		params.ImageURL,
		params.CreatedBy,
	)

	event, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, ulid string, params events.UpdateParams) error {
	tag, err := r.db.Exec(ctx, `
UPDATE events
   SET name = $2,
       description = NULLIF($3, ''),
       starts_at = $4,
       location = $5,
       image_url = COALESCE(NULLIF($6, ''), image_url),
       updated_at = now()
 WHERE ulid = $1
`,
		ulid,
		params.Name,
		params.Description,
		params.StartsAt,
		params.Location,
		params.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, ulid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var data eventRow
	if err := row.Scan(
		&data.ID,
		&data.ULID,
		&data.Name,
		&data.Description,
		&data.StartsAt,
		&data.Location,
		&data.ImageURL,
		&data.CreatedBy,
		&data.CreatedAt,
		&data.UpdatedAt,
	); err != nil {
		return nil, err
	}

	event := &events.Event{
		ID:        data.ID,
		ULID:      data.ULID,
		Name:      data.Name,
		StartsAt:  data.StartsAt.Time,
		Location:  data.Location,
		CreatedBy: data.CreatedBy,
		CreatedAt: data.CreatedAt.Time,
		UpdatedAt: data.UpdatedAt.Time,
	}
	if data.Description != nil {
		event.Description = *data.Description
	}
	if data.ImageURL != nil {
		event.ImageURL = *data.ImageURL
	}
	return event, nil
}
