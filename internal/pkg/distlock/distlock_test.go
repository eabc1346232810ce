package distlock

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)

	a := NewRedisLock(client, "leadintel:org-1:lead:1", time.Minute)
	b := NewRedisLock(client, "leadintel:org-1:lead:1", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a held key")

	require.NoError(t, a.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseByNonOwnerKeepsKey(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)

	owner := NewRedisLock(client, "k", time.Minute)
	other := NewRedisLock(client, "k", time.Minute)

	ok, err := owner.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, other.Release(ctx), ErrNotHeld)
	assert.True(t, mr.Exists("lock:k"))
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)

	a := NewRedisLock(client, "k", 5*time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	b := NewRedisLock(client, "k", 5*time.Second)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, a.Release(ctx), ErrNotHeld)
}

func TestRedisLock_Extend(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)

	a := NewRedisLock(client, "k", 2*time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Extend(ctx, time.Minute))
	mr.FastForward(10 * time.Second)
	assert.True(t, mr.Exists("lock:k"))
}

func TestLocker_KeepsRedisLockAlive(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	locker := NewLocker(client, nil, 300*time.Millisecond, time.Second)

	unlock, err := locker.Lock(ctx, "k")
	require.NoError(t, err)

	// Left alone the key would lapse almost at once.
	mr.SetTTL("lock:k", 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL("lock:k") > 10*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	mr.FastForward(100 * time.Millisecond)
	assert.True(t, mr.Exists("lock:k"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("lock:k"))
}

func TestPGAdvisoryLock_AcquireRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := AdvisoryID("leadintel:org-1:contact:9")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	lock := NewPGAdvisoryLock(db, "leadintel:org-1:contact:9")
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	assert.ErrorIs(t, lock.Release(context.Background()), ErrNotHeld)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_NotAcquired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	lock := NewPGAdvisoryLock(db, "busy")
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, lock.Release(context.Background()), ErrNotHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryID_Deterministic(t *testing.T) {
	assert.Equal(t, AdvisoryID("a"), AdvisoryID("a"))
	assert.NotEqual(t, AdvisoryID("a"), AdvisoryID("b"))
}

func TestNewLock_PicksBackend(t *testing.T) {
	_, client := newRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.IsType(t, &RedisLock{}, NewLock(client, db, "k", time.Second))
	assert.IsType(t, &PGAdvisoryLock{}, NewLock(nil, db, "k", time.Second))
	assert.IsType(t, &LocalLock{}, NewLock(nil, nil, "k", time.Second))
}

func TestLocker_WaitsForRelease(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	locker := NewLocker(client, nil, time.Minute, 2*time.Second, WithBackoff(5*time.Millisecond, 20*time.Millisecond))

	unlock, err := locker.Lock(ctx, "k")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		unlock2, err := locker.Lock(ctx, "k")
		if err == nil {
			unlock2(ctx)
		}
		close(acquired)
	}()

	time.Sleep(30 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second Lock returned while key was held")
	default:
	}

	require.NoError(t, unlock(ctx))
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock did not acquire after release")
	}
}

func TestLocker_TimesOut(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(nil, nil, time.Minute, 30*time.Millisecond, WithBackoff(5*time.Millisecond, 10*time.Millisecond))

	unlock, err := locker.Lock(ctx, "timeout-key")
	require.NoError(t, err)
	defer unlock(ctx)

	_, err = locker.Lock(ctx, "timeout-key")
	assert.True(t, errors.Is(err, ErrLockTimeout))
}

func TestLocker_ContextCancelled(t *testing.T) {
	locker := NewLocker(nil, nil, time.Minute, time.Minute, WithBackoff(5*time.Millisecond, 10*time.Millisecond))
	unlock, err := locker.Lock(context.Background(), "cancel-key")
	require.NoError(t, err)
	defer unlock(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "cancel-key")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLock_SerializesGoroutines(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(nil, nil, time.Minute, 5*time.Second, WithBackoff(time.Millisecond, 5*time.Millisecond))

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "shared")
			if err != nil {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
