// Package distlock provides named mutual exclusion across processes.
//
// Redis (SET NX PX with an owner token) is preferred; PostgreSQL advisory
// locks are the fallback when Redis is not configured, and an in-process
// lock table is used when neither is available (single-node development
// and tests).
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lock is not held by this instance.
var ErrNotHeld = errors.New("distlock: lock not held")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks, and to an in-process
// lock when db is nil as well.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	default:
		return NewLocalLock(key)
	}
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// pg_try_advisory_lock / pg_advisory_unlock are session-scoped, so the lock
// pins one pooled connection between Acquire and Release. The lock is
// released automatically if that connection drops.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{db: db, lockID: AdvisoryID(key)}
}

// AdvisoryID maps a lock name to the 64-bit advisory lock key.
func AdvisoryID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// Acquire tries to acquire the advisory lock. Non-blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, fmt.Errorf("distlock: advisory lock %d already acquired", l.lockID)
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("distlock: reserve connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("distlock: try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the pinned connection.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return ErrNotHeld
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID); err != nil {
		return fmt.Errorf("distlock: advisory unlock: %w", err)
	}
	return nil
}

// =============================================================================
// In-process lock (no shared backend configured)
// =============================================================================

var local = struct {
	mu   sync.Mutex
	held map[string]bool
}{held: make(map[string]bool)}

// LocalLock implements DistLock with a process-wide lock table.
type LocalLock struct {
	key  string
	held bool
}

// NewLocalLock creates an in-process lock for key.
func NewLocalLock(key string) *LocalLock { return &LocalLock{key: key} }

// Acquire takes the lock if no other LocalLock in this process holds key.
func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	local.mu.Lock()
	defer local.mu.Unlock()
	if local.held[l.key] {
		return false, nil
	}
	local.held[l.key] = true
	l.held = true
	return true, nil
}

// Release frees the key.
func (l *LocalLock) Release(_ context.Context) error {
	if !l.held {
		return ErrNotHeld
	}
	local.mu.Lock()
	delete(local.held, l.key)
	local.mu.Unlock()
	l.held = false
	return nil
}
