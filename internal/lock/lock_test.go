package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLockAndUnlock(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "relay:send:rcpt:jane@acme.com", "holder-1")
	assert.NoError(t, locker.Lock(ctx, time.Minute))

	// A second holder cannot take the same key.
	other := NewLocker(client, "relay:send:rcpt:jane@acme.com", "holder-2")
	assert.Error(t, other.Lock(ctx, time.Minute))

	assert.NoError(t, locker.Unlock(ctx))
	assert.NoError(t, other.Lock(ctx, time.Minute))
}

func TestUnlockOnlyByHolder(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "relay:send:draft:drf_1", "holder-1")
	assert.NoError(t, locker.Lock(ctx, time.Minute))

	imposter := NewLocker(client, "relay:send:draft:drf_1", "holder-2")
	assert.Error(t, imposter.Unlock(ctx))

	// The real holder still owns the key.
	assert.NoError(t, locker.Unlock(ctx))
}

func TestExtendLock(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "relay:send:draft:drf_1", "holder-1")
	assert.NoError(t, locker.Lock(ctx, time.Minute))
	assert.NoError(t, locker.ExtendLock(ctx, 2*time.Minute))

	ttl := mr.TTL("relay:send:draft:drf_1")
	assert.Greater(t, ttl, time.Minute)
}

func TestWaitLockAcquiresAfterRelease(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	first := NewLocker(client, "relay:send:rcpt:jane@acme.com", "holder-1")
	assert.NoError(t, first.Lock(ctx, time.Minute))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = first.Unlock(context.Background())
	}()

	second := NewLocker(client, "relay:send:rcpt:jane@acme.com", "holder-2")
	assert.NoError(t, second.WaitLock(ctx, time.Minute, time.Second))
}

func TestLockPropagatesRedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectSetNX("relay:send:draft:drf_1", "holder-1", time.Minute).
		SetErr(errors.New("connection refused"))

	locker := NewLocker(client, "relay:send:draft:drf_1", "holder-1")
	err := locker.Lock(ctx, time.Minute)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitLockTimesOut(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	first := NewLocker(client, "relay:send:rcpt:jane@acme.com", "holder-1")
	assert.NoError(t, first.Lock(ctx, time.Minute))

	second := NewLocker(client, "relay:send:rcpt:jane@acme.com", "holder-2")
	err := second.WaitLock(ctx, time.Minute, 150*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockHeld)
}
