package events

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

type memoryRepository struct {
	mu     sync.Mutex
	events map[string]Event
	seq    int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{events: make(map[string]Event)}
}

// List mirrors the SQL contract: newest first.
func (r *memoryRepository) List(ctx context.Context, pagination Pagination) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]Event, 0, len(r.events))
	for _, event := range r.events {
		list = append(list, event)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if pagination.Limit > 0 && len(list) > pagination.Limit {
		list = list[:pagination.Limit]
	}
	return list, nil
}

func (r *memoryRepository) GetByULID(ctx context.Context, id string) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (r *memoryRepository) Create(ctx context.Context, params CreateParams) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	event := Event{
		ID:          "row-" + params.ULID,
		ULID:        params.ULID,
		Name:        params.Name,
		Description: params.Description,
		StartsAt:    params.StartsAt,
		Location:    params.Location,
		ImageURL:    params.ImageURL,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.events[params.ULID] = event
	return &event, nil
}

func (r *memoryRepository) Update(ctx context.Context, id string, params UpdateParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return ErrNotFound
	}
	event.Name = params.Name
	event.Description = params.Description
	event.StartsAt = params.StartsAt
	event.Location = params.Location
	if params.ImageURL != "" {
		event.ImageURL = params.ImageURL
	}
	event.UpdatedAt = time.Now()
	r.events[id] = event
	return nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func validInput() Input {
	return Input{
		Name:     "Garden Party",
		StartsAt: time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC),
		Location: "Riverside Park",
	}
}

func TestCreateMintsULID(t *testing.T) {
	svc := NewService(newMemoryRepository())

	event, err := svc.Create(context.Background(), validInput(), "acct-1")
	require.NoError(t, err)
	_, err = ulid.ParseStrict(event.ULID)
	require.NoError(t, err)
	require.Equal(t, "acct-1", event.CreatedBy)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc := NewService(newMemoryRepository())

	input := validInput()
	input.Name = ""
	_, err := svc.Create(context.Background(), input, "acct-1")
	var validationErr ValidationError
	require.ErrorAs(t, err, &validationErr)

	input = validInput()
	input.Location = ""
	_, err = svc.Create(context.Background(), input, "acct-1")
	require.ErrorAs(t, err, &validationErr)

	input = validInput()
	input.StartsAt = time.Time{}
	_, err = svc.Create(context.Background(), input, "acct-1")
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateSanitizesMarkup(t *testing.T) {
	svc := NewService(newMemoryRepository())

	input := validInput()
	input.Name = `<script>alert("x")</script>Garden Party`
	input.Description = `<p>Bring snacks</p><script>alert("y")</script>`
	event, err := svc.Create(context.Background(), input, "acct-1")
	require.NoError(t, err)
	require.NotContains(t, event.Name, "<script>")
	require.Contains(t, event.Name, "Garden Party")
	require.NotContains(t, event.Description, "<script>")
	require.Contains(t, event.Description, "Bring snacks")
}

func TestGetByULIDInvalidIDIsNotFound(t *testing.T) {
	svc := NewService(newMemoryRepository())

	_, err := svc.GetByULID(context.Background(), "not-a-ulid")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUnknownEventIsNotFound(t *testing.T) {
	svc := NewService(newMemoryRepository())

	id := ulid.Make().String()
	err := svc.Update(context.Background(), id, validInput())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRoundTrip(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo)

	event, err := svc.Create(context.Background(), validInput(), "acct-1")
	require.NoError(t, err)

	changed := validInput()
	changed.Name = "Garden Party (moved)"
	changed.Location = "Town Hall"
	require.NoError(t, svc.Update(context.Background(), event.ULID, changed))

	got, err := svc.GetByULID(context.Background(), event.ULID)
	require.NoError(t, err)
	require.Equal(t, "Garden Party (moved)", got.Name)
	require.Equal(t, "Town Hall", got.Location)
}

func TestDeleteRemovesEvent(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo)

	event, err := svc.Create(context.Background(), validInput(), "acct-1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), event.ULID))
	_, err = svc.GetByULID(context.Background(), event.ULID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, svc.Delete(context.Background(), event.ULID), ErrNotFound)
}

func TestListReturnsNewestFirst(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo)

	for _, name := range []string{"Oldest", "Middle", "Newest"} {
		input := validInput()
		input.Name = name
		_, err := svc.Create(context.Background(), input, "acct-1")
		require.NoError(t, err)
	}

	list, err := svc.List(context.Background(), Pagination{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "Newest", list[0].Name)
	require.Equal(t, "Oldest", list[2].Name)
	require.True(t, list[0].CreatedAt.After(list[2].CreatedAt))
}

func TestParseStartsAt(t *testing.T) {
	parsed, err := ParseStartsAt("2026-09-12T18:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 18, parsed.UTC().Hour())

	parsed, err = ParseStartsAt("2026-09-12T18:00")
	require.NoError(t, err)
	require.Equal(t, 18, parsed.Hour())

	_, err = ParseStartsAt("")
	require.Error(t, err)

	_, err = ParseStartsAt("next tuesday")
	require.Error(t, err)
}

func TestParseLimit(t *testing.T) {
	limit, err := ParseLimit("")
	require.NoError(t, err)
	require.Equal(t, 50, limit)

	limit, err = ParseLimit("10")
	require.NoError(t, err)
	require.Equal(t, 10, limit)

	for _, raw := range []string{"0", "201", "-5", "abc"} {
		_, err = ParseLimit(raw)
		require.Error(t, err, raw)
	}
}

func TestValidateULIDIsCaseInsensitive(t *testing.T) {
	id := ulid.Make().String()
	require.NoError(t, validateULID(strings.ToLower(id)))
}
