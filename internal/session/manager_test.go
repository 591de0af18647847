package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gatherly/server/internal/accounts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu      sync.Mutex
	byID    map[string]*accounts.Account
	findErr error
}

func newStubStore() *stubStore {
	return &stubStore{byID: make(map[string]*accounts.Account)}
}

func (s *stubStore) add(account *accounts.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[account.ID] = account
}

func (s *stubStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func (s *stubStore) FindByID(ctx context.Context, id string) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	account, ok := s.byID[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *stubStore) FindByUsername(ctx context.Context, username string) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.byID {
		if account.Username == username {
			copied := *account
			return &copied, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (s *stubStore) Create(ctx context.Context, params accounts.CreateParams) (*accounts.Account, error) {
	return nil, errors.New("not implemented")
}

func testAccount() *accounts.Account {
	return &accounts.Account{
		ID:       "acct-1",
		Username: "alice",
		Email:    "alice@example.com",
	}
}

func TestStartAndResolve(t *testing.T) {
	store := newStubStore()
	store.add(testAccount())
	m := NewManager(store, 0, zerolog.Nop())
	defer m.Stop()

	token, err := m.Start(testAccount())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	account, err := m.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Equal(t, "alice", account.Username)
}

func TestResolveUnknownTokenIsAnonymous(t *testing.T) {
	m := NewManager(newStubStore(), 0, zerolog.Nop())
	defer m.Stop()

	account, err := m.Resolve(context.Background(), "no-such-token")
	require.NoError(t, err)
	require.Nil(t, account)

	account, err = m.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, account)
}

func TestResolveAfterEndIsAnonymous(t *testing.T) {
	store := newStubStore()
	store.add(testAccount())
	m := NewManager(store, 0, zerolog.Nop())
	defer m.Stop()

	token, err := m.Start(testAccount())
	require.NoError(t, err)

	require.True(t, m.End(token))
	require.False(t, m.End(token))

	account, err := m.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Nil(t, account)
}

func TestResolveExpiredSessionIsAnonymous(t *testing.T) {
	store := newStubStore()
	store.add(testAccount())
	m := NewManager(store, time.Millisecond, zerolog.Nop())
	defer m.Stop()

	token, err := m.Start(testAccount())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	account, err := m.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Nil(t, account)
	require.Equal(t, 0, m.Count())
}

func TestResolveRereadsAccountFromStore(t *testing.T) {
	store := newStubStore()
	store.add(testAccount())
	m := NewManager(store, 0, zerolog.Nop())
	defer m.Stop()

	token, err := m.Start(testAccount())
	require.NoError(t, err)

	updated := testAccount()
	updated.Email = "new@example.com"
	store.add(updated)

	account, err := m.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", account.Email)
}

func TestResolveDeletedAccountIsAnonymous(t *testing.T) {
	store := newStubStore()
	store.add(testAccount())
	m := NewManager(store, 0, zerolog.Nop())
	defer m.Stop()

	token, err := m.Start(testAccount())
	require.NoError(t, err)

	store.remove("acct-1")

	account, err := m.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Nil(t, account)
	require.Equal(t, 0, m.Count())
}

func TestResolveStoreFailureIsAnError(t *testing.T) {
	store := newStubStore()
	store.add(testAccount())
	m := NewManager(store, 0, zerolog.Nop())
	defer m.Stop()

	token, err := m.Start(testAccount())
	require.NoError(t, err)

	store.findErr = errors.New("connection refused")

	_, err = m.Resolve(context.Background(), token)
	require.Error(t, err)
}

func TestConcurrentSessionsPerAccount(t *testing.T) {
	store := newStubStore()
	store.add(testAccount())
	m := NewManager(store, 0, zerolog.Nop())
	defer m.Stop()

	first, err := m.Start(testAccount())
	require.NoError(t, err)
	second, err := m.Start(testAccount())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.True(t, m.End(first))

	account, err := m.Resolve(context.Background(), second)
	require.NoError(t, err)
	require.NotNil(t, account)
}

func TestManagerConcurrentAccess(t *testing.T) {
	store := newStubStore()
	store.add(testAccount())
	m := NewManager(store, 0, zerolog.Nop())
	defer m.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.Start(testAccount())
			require.NoError(t, err)
			_, err = m.Resolve(context.Background(), token)
			require.NoError(t, err)
			m.End(token)
		}()
	}
	wg.Wait()
	require.Equal(t, 0, m.Count())
}
