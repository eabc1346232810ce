package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	sessions map[string]*Session
	lookups  int
}

func (s *memStore) LookupSession(_ context.Context, hash string) (*Session, error) {
	s.lookups++
	sess, ok := s.sessions[hash]
	if !ok {
		return nil, ErrInvalidSession
	}
	return sess, nil
}

func TestResolve_CachesHits(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{sessions: map[string]*Session{
		HashToken("tok-1"): {UserID: "u-1", OrganizationID: "org-1", ExpiresAt: now.Add(time.Hour)},
	}}
	m := NewManager(store, time.Minute)
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		s, err := m.Resolve(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "org-1", s.OrganizationID)
	}
	assert.Equal(t, 1, store.lookups)

	now = now.Add(2 * time.Minute)
	_, err := m.Resolve(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.lookups, "cache entry expired")
}

func TestResolve_RejectsUnknownAndExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{sessions: map[string]*Session{
		HashToken("old"): {OrganizationID: "org-1", ExpiresAt: now.Add(-time.Second)},
	}}
	m := NewManager(store, time.Minute)
	m.now = func() time.Time { return now }

	_, err := m.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = m.Resolve(context.Background(), "old")
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = m.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestEvict(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{sessions: map[string]*Session{
		HashToken("a"): {OrganizationID: "org-1", ExpiresAt: now.Add(30 * time.Second)},
		HashToken("b"): {OrganizationID: "org-1", ExpiresAt: now.Add(time.Hour)},
	}}
	m := NewManager(store, 10*time.Minute)
	m.now = func() time.Time { return now }
	_, _ = m.Resolve(context.Background(), "a")
	_, _ = m.Resolve(context.Background(), "b")

	now = now.Add(time.Minute)
	m.evict()
	assert.Len(t, m.sessions, 1)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, ok := BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "bearer  abc ")
	tok, ok := BearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	r.Header.Set("Authorization", "Basic abc")
	_, ok = BearerToken(r)
	assert.False(t, ok)
}

func TestHashToken(t *testing.T) {
	assert.Len(t, HashToken("x"), 64)
	assert.Equal(t, HashToken("x"), HashToken("x"))
	assert.NotEqual(t, HashToken("x"), HashToken("y"))
}
