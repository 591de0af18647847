package handlers

import (
	"context"
	"html/template"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gatherly/server/internal/accounts"
	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/audit"
	"github.com/gatherly/server/internal/events"
	"github.com/gatherly/server/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testCookieName = "gatherly_session"

type memAccounts struct {
	mu      sync.Mutex
	byName  map[string]*accounts.Account
	nextID  int
	findErr error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byName: make(map[string]*accounts.Account)}
}

func (s *memAccounts) FindByUsername(ctx context.Context, username string) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if account, ok := s.byName[username]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, accounts.ErrNotFound
}

func (s *memAccounts) FindByID(ctx context.Context, id string) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, account := range s.byName {
		if account.ID == id {
			copied := *account
			return &copied, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (s *memAccounts) Create(ctx context.Context, params accounts.CreateParams) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[params.Username]; exists {
		return nil, accounts.ErrDuplicateUsername
	}
	s.nextID++
	account := &accounts.Account{
		ID:           "acct-" + params.Username,
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    time.Now(),
	}
	s.byName[params.Username] = account
	copied := *account
	return &copied, nil
}

type memEvents struct {
	mu     sync.Mutex
	events map[string]events.Event
	seq    int
}

func newMemEvents() *memEvents {
	return &memEvents{events: make(map[string]events.Event)}
}

func (r *memEvents) List(ctx context.Context, pagination events.Pagination) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]events.Event, 0, len(r.events))
	for _, event := range r.events {
		list = append(list, event)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if pagination.Limit > 0 && len(list) > pagination.Limit {
		list = list[:pagination.Limit]
	}
	return list, nil
}

func (r *memEvents) GetByULID(ctx context.Context, id string) (*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event, ok := r.events[id]; ok {
		return &event, nil
	}
	return nil, events.ErrNotFound
}

func (r *memEvents) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	event := events.Event{
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

func (r *memEvents) Update(ctx context.Context, id string, params events.UpdateParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return events.ErrNotFound
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

func (r *memEvents) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return events.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func testTemplates(t *testing.T) *template.Template {
	t.Helper()
	tmpl := template.New("pages")
	tmpl = template.Must(tmpl.New("login.html").Parse(`<form action="/login">{{.Title}}</form>`))
	tmpl = template.Must(tmpl.New("signup.html").Parse(`<form action="/signup">{{.Title}}</form>`))
	return tmpl
}

type authFixture struct {
	handler  *AuthHandler
	store    *memAccounts
	sessions *session.Manager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := newMemAccounts()
	sessions := session.NewManager(store, time.Hour, zerolog.Nop())
	t.Cleanup(sessions.Stop)

	return &authFixture{
		handler: &AuthHandler{
			Authenticator: accounts.NewAuthenticator(store, zerolog.Nop()),
			Accounts:      accounts.NewService(store, zerolog.Nop()),
			Sessions:      sessions,
			Audit:         audit.NewLogger(),
			Templates:     testTemplates(t),
			CookieName:    testCookieName,
			SessionTTL:    time.Hour,
			Env:           "test",
		},
		store:    store,
		sessions: sessions,
	}
}

func (f *authFixture) seed(t *testing.T, username, password string) *accounts.Account {
	t.Helper()
	account, err := f.handler.Accounts.Signup(context.Background(), accounts.SignupParams{
		Username: username,
		Password: password,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return account
}

// withSession wraps a handler with the session gate so CurrentAccount is
// populated the same way it is in the real router.
func withSession(manager *session.Manager, next http.Handler) http.Handler {
	return middleware.RequireSession(manager, testCookieName, "test")(next)
}
