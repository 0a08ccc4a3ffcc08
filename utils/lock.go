// File: utils/lock.go
package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the lock key only when it still holds our token, so
// an expired lock reacquired by another holder is never released from here.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BookingLocker serializes transitions per booking id with a Redis lock.
// Multiple triggers (user actions, Stripe webhooks, Calendly webhooks) can
// race to advance the same booking; the flow service takes this lock before
// loading the booking context.
type BookingLocker struct {
	Client *redis.Client
	TTL    time.Duration
	Wait   time.Duration
}

func NewBookingLocker(client *redis.Client) *BookingLocker {
	return &BookingLocker{
		Client: client,
		TTL:    10 * time.Second,
		Wait:   5 * time.Second,
	}
}

// Acquire blocks until the per-booking lock is held or the wait budget runs
// out, and returns a release function. The release is best-effort: an
// expired lock simply falls to the next acquirer.
func (l *BookingLocker) Acquire(ctx context.Context, bookingID string) (func(), error) {
	key := "booking:lock:" + bookingID
	token := uuid.New().String()
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for booking lock on %s", bookingID)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire booking lock: %w", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.Client, []string{key}, token).Err()
	}
	return release, nil
}
