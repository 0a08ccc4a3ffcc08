package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *BookingLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewBookingLocker(client)
	locker.Wait = 200 * time.Millisecond
	return locker
}

func TestBookingLockerAcquireRelease(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "b1")
	require.NoError(t, err)

	// The same booking is locked out until release.
	_, err = locker.Acquire(ctx, "b1")
	assert.Error(t, err)

	release()

	release2, err := locker.Acquire(ctx, "b1")
	require.NoError(t, err)
	release2()
}

func TestBookingLockerIndependentPerBooking(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	release1, err := locker.Acquire(ctx, "b1")
	require.NoError(t, err)
	defer release1()

	release2, err := locker.Acquire(ctx, "b2")
	require.NoError(t, err)
	defer release2()
}

func TestBookingLockerWaitsForHolder(t *testing.T) {
	locker := newTestLocker(t)
	locker.Wait = 2 * time.Second
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "b1")
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		release()
	}()

	start := time.Now()
	release2, err := locker.Acquire(ctx, "b1")
	require.NoError(t, err)
	defer release2()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBookingLockerRespectsContext(t *testing.T) {
	locker := newTestLocker(t)
	locker.Wait = 5 * time.Second

	release, err := locker.Acquire(context.Background(), "b1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "b1")
	assert.Error(t, err)
}
