package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadintel/internal/pkg/logger"
)

// ErrLockTimeout is returned by Locker.Lock when the key stayed held by
// another owner for the whole wait budget.
var ErrLockTimeout = errors.New("distlock: timed out waiting for lock")

// Locker hands out named locks on demand, waiting with backoff when a key
// is held elsewhere.
type Locker struct {
	redis    *redis.Client
	db       *sql.DB
	ttl      time.Duration
	wait     time.Duration
	minDelay time.Duration
	maxDelay time.Duration
}

// LockerOption customizes a Locker.
type LockerOption func(*Locker)

// WithBackoff sets the poll interval bounds used while waiting.
func WithBackoff(min, max time.Duration) LockerOption {
	return func(l *Locker) {
		l.minDelay = min
		l.maxDelay = max
	}
}

// NewLocker builds a Locker over the same backends NewLock picks from.
// ttl bounds how long a crashed holder can keep a Redis key; wait bounds
// how long Lock polls before giving up.
func NewLocker(redisClient *redis.Client, db *sql.DB, ttl, wait time.Duration, opts ...LockerOption) *Locker {
	l := &Locker{
		redis:    redisClient,
		db:       db,
		ttl:      ttl,
		wait:     wait,
		minDelay: 50 * time.Millisecond,
		maxDelay: time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock blocks until key is acquired, the wait budget runs out
// (ErrLockTimeout) or ctx is done. The returned func releases the lock;
// it is safe to call once. Locks that expire on their own (Redis) are
// extended every ttl/3 until released.
func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	lock := NewLock(l.redis, l.db, key, l.ttl)
	deadline := time.Now().Add(l.wait)
	delay := l.minDelay

	for {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			if ext, canExtend := lock.(extender); canExtend && l.ttl/3 > 0 {
				return l.keepAlive(lock, ext, key), nil
			}
			return lock.Release, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		if delay > remaining {
			delay = remaining
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > l.maxDelay {
			delay = l.maxDelay
		}
	}
}

type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// keepAlive refreshes the lock's TTL in the background so a holder that
// outlives ttl keeps the key. The returned func stops it and releases.
func (l *Locker) keepAlive(lock DistLock, ext extender, key string) func(context.Context) error {
	interval := l.ttl / 3
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				err := ext.Extend(ctx, l.ttl)
				cancel()
				if errors.Is(err, ErrNotHeld) {
					logger.Warn("lock lost before release", "key", key)
					return
				}
				if err != nil {
					logger.Warn("lock keep-alive failed", "key", key, "error", err.Error())
				}
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		return lock.Release(ctx)
	}
}
