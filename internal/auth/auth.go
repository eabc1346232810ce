// Package auth resolves bearer session tokens to the organization they act
// for. Sessions are issued elsewhere; this package only looks them up.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrInvalidSession is returned when a token is unknown, revoked or expired.
var ErrInvalidSession = errors.New("invalid or expired session")

// Session is an authenticated session as stored by the identity store.
type Session struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Store looks sessions up by the SHA-256 hash of their token. It returns
// ErrInvalidSession when no live session matches.
type Store interface {
	LookupSession(ctx context.Context, tokenHash string) (*Session, error)
}

type cachedSession struct {
	session  *Session
	cachedAt time.Time
}

// Manager resolves tokens through a Store, caching hits for a short time.
type Manager struct {
	store     Store
	cacheTTL  time.Duration
	now       func() time.Time
	sessions  map[string]cachedSession
	sessionMu sync.RWMutex
}

// NewManager creates a session manager. cacheTTL <= 0 disables caching.
func NewManager(store Store, cacheTTL time.Duration) *Manager {
	return &Manager{
		store:    store,
		cacheTTL: cacheTTL,
		now:      time.Now,
		sessions: make(map[string]cachedSession),
	}
}

// HashToken returns the lookup key stored for a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Resolve returns the session for token.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	key := HashToken(token)
	now := m.now()

	m.sessionMu.RLock()
	c, ok := m.sessions[key]
	m.sessionMu.RUnlock()
	if ok && now.Sub(c.cachedAt) < m.cacheTTL && now.Before(c.session.ExpiresAt) {
		return c.session, nil
	}

	s, err := m.store.LookupSession(ctx, key)
	if err != nil {
		if ok {
			m.sessionMu.Lock()
			delete(m.sessions, key)
			m.sessionMu.Unlock()
		}
		return nil, err
	}
	if !now.Before(s.ExpiresAt) {
		return nil, ErrInvalidSession
	}
	if m.cacheTTL > 0 {
		m.sessionMu.Lock()
		m.sessions[key] = cachedSession{session: s, cachedAt: now}
		m.sessionMu.Unlock()
	}
	return s, nil
}

// CleanupExpiredSessions drops stale cache entries every interval until ctx
// is done.
func (m *Manager) CleanupExpiredSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.evict()
			}
		}
	}()
}

func (m *Manager) evict() {
	now := m.now()
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	for k, c := range m.sessions {
		if !now.Before(c.session.ExpiresAt) || now.Sub(c.cachedAt) >= m.cacheTTL {
			delete(m.sessions, k)
		}
	}
}
