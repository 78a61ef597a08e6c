package lock_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/lock"
)

const sweepLockKey = "financing:sweep:schedule"

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

// Two worker replicas racing for the sweep schedule: only one may enqueue at
// a time, and the loser runs after the holder releases.
func TestWithLockSerialisesSweepSchedulers(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var enqueues int32
	var concurrent int32
	var overlapped int32
	holding := make(chan struct{})
	release := make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- locker.WithLock(ctx, sweepLockKey, time.Second, func(context.Context) error {
			atomic.AddInt32(&concurrent, 1)
			close(holding)
			<-release
			atomic.AddInt32(&enqueues, 1)
			atomic.AddInt32(&concurrent, -1)
			return nil
		})
	}()

	<-holding
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- locker.WithLock(ctx, sweepLockKey, time.Second, func(context.Context) error {
			if atomic.LoadInt32(&concurrent) != 0 {
				atomic.StoreInt32(&overlapped, 1)
			}
			atomic.AddInt32(&enqueues, 1)
			return nil
		})
	}()

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	require.Equal(t, int32(2), atomic.LoadInt32(&enqueues))
	require.Zero(t, atomic.LoadInt32(&overlapped), "second scheduler entered while first held the lock")
}

func TestWithLockReleasesOnCallbackError(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	sweepErr := errors.New("sweep enqueue failed")
	err := locker.WithLock(ctx, sweepLockKey, time.Second, func(context.Context) error {
		return sweepErr
	})
	require.ErrorIs(t, err, sweepErr)

	// The key must be gone so the next tick is not blocked until TTL.
	require.False(t, mr.Exists(sweepLockKey))
}

func TestWithLockStopsOnContextCancel(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set(sweepLockKey, "other-replica"))
	mr.SetTTL(sweepLockKey, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := locker.WithLock(ctx, sweepLockKey, time.Second, func(context.Context) error {
		t.Fatal("callback ran while another replica held the lock")
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The foreign token survives: a waiter that gives up must not release
	// someone else's lock.
	got, err := mr.Get(sweepLockKey)
	require.NoError(t, err)
	require.Equal(t, "other-replica", got)
}
