// Package session owns the token → identity-reference table. A session holds
// only the account id; the account itself is re-read from the credential
// store on every Resolve so out-of-band changes are visible on the next
// request without session invalidation.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gatherly/server/internal/accounts"
	"github.com/gatherly/server/internal/metrics"
	"github.com/rs/zerolog"
)

type session struct {
	accountID string
	createdAt time.Time
	expiresAt time.Time // zero when the manager has no TTL
}

// Manager issues, resolves and destroys sessions. All methods are safe for
// concurrent use from different connections.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]session

	store     accounts.Store
	ttl       time.Duration
	logger    zerolog.Logger
	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewManager creates a session manager. ttl of zero disables expiry; sessions
// then live until End or client discard.
func NewManager(store accounts.Store, ttl time.Duration, logger zerolog.Logger) *Manager {
	m := &Manager{
		sessions:  make(map[string]session),
		store:     store,
		ttl:       ttl,
		logger:    logger.With().Str("component", "session").Logger(),
		stopSweep: make(chan struct{}),
	}
	if ttl > 0 {
		go m.sweepLoop()
	}
	return m
}

// Start creates a new session bound to the account id and returns its opaque
// token. Prior sessions for the same identity are untouched; concurrent
// sessions per identity are permitted.
func (m *Manager) Start(account *accounts.Account) (string, error) {
	if account == nil || account.ID == "" {
		return "", errors.New("session start: nil account")
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	entry := session{accountID: account.ID, createdAt: now}
	if m.ttl > 0 {
		entry.expiresAt = now.Add(m.ttl)
	}

	m.mu.Lock()
	m.sessions[token] = entry
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	return token, nil
}

// Resolve maps a token to its account, re-reading the record from the store.
// An unknown or expired token, or a token whose account no longer exists,
// degrades to (nil, nil), meaning anonymous. Only a storage I/O failure is an
// error.
// Every authorization decision downstream depends on this being total.
func (m *Manager) Resolve(ctx context.Context, token string) (*accounts.Account, error) {
	if token == "" {
		return nil, nil
	}

	m.mu.RLock()
	entry, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.End(token)
		return nil, nil
	}

	account, err := m.store.FindByID(ctx, entry.accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			// Account deleted out of band; the session is now meaningless.
			m.End(token)
			return nil, nil
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return account, nil
}

// End destroys the session. It reports whether a session existed; a
// subsequent Resolve on the same token returns anonymous either way.
func (m *Manager) End(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return false
	}
	delete(m.sessions, token)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return true
}

// Count returns the number of live sessions, expired entries included until
// the next sweep.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop shuts down the background expiry sweep.
func (m *Manager) Stop() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopSweep:
			return
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for token, entry := range m.sessions {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	if removed > 0 {
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		m.logger.Debug().Int("removed", removed).Msg("swept expired sessions")
	}
}

// generateToken returns 32 random bytes encoded as URL-safe base64
// (43 characters), unguessable by construction.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
