package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"buildbook/config"
	"buildbook/models"
	"buildbook/services/booking"
)

const TypePaymentExpiry = "booking:payment_expiry"

type paymentExpiryPayload struct {
	BookingID string `json:"bookingId"`
}

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// ExpiryScheduler enqueues delayed payment-expiry tasks. It implements
// booking.ExpiryScheduler.
type ExpiryScheduler struct {
	client *asynq.Client
}

func NewExpiryScheduler() *ExpiryScheduler {
	return &ExpiryScheduler{client: asynq.NewClient(redisOpts())}
}

// SchedulePaymentExpiry arms a one-shot task that fires after delay. The
// handler re-checks the booking's state, so a booking that paid in time is
// left alone.
func (s *ExpiryScheduler) SchedulePaymentExpiry(ctx context.Context, bookingID string, delay time.Duration) error {
	payload, err := json.Marshal(paymentExpiryPayload{BookingID: bookingID})
	if err != nil {
		return fmt.Errorf("failed to marshal expiry payload: %w", err)
	}
	task := asynq.NewTask(TypePaymentExpiry, payload)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay)); err != nil {
		return fmt.Errorf("failed to enqueue payment expiry for %s: %w", bookingID, err)
	}
	return nil
}

func (s *ExpiryScheduler) Close() error {
	return s.client.Close()
}

// InitExpiryWorker runs the async worker that times out stale payments in the
// background. The state machine has no intrinsic timeouts; this worker layers
// the policy on top by issuing an ERROR_OCCURRED transition, which the client
// can later RECOVER from.
func InitExpiryWorker(flow booking.BookingFlowService, logger *zap.Logger) {
	srv := asynq.NewServer(
		redisOpts(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePaymentExpiry, handlePaymentExpiry(flow, logger))

	go func() {
		logger.Info("starting payment expiry worker")
		if err := srv.Run(mux); err != nil {
			logger.Fatal("payment expiry worker failed", zap.Error(err))
		}
	}()
}

func handlePaymentExpiry(flow booking.BookingFlowService, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p paymentExpiryPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid payment expiry payload", zap.Error(err))
			return err
		}

		bc, err := flow.GetBookingState(ctx, p.BookingID)
		if err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load booking %s for expiry: %w", p.BookingID, err)
		}
		if bc.State != models.StatePaymentPending {
			return nil
		}

		res, err := flow.ApplyEvent(ctx, p.BookingID, models.EventInput{
			Event: models.EventErrorOccurred,
			Data: models.BookingStateData{
				Error: &models.BookingError{
					Message: "payment window expired",
					Code:    "PAYMENT_TIMEOUT",
				},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to expire booking %s: %w", p.BookingID, err)
		}
		if !res.Success {
			// Another trigger advanced the booking between our check and
			// the transition; nothing left to expire.
			logger.Info("payment expiry skipped",
				zap.String("bookingId", p.BookingID),
				zap.String("state", string(res.CurrentState)),
			)
			return nil
		}
		logger.Info("booking payment expired", zap.String("bookingId", p.BookingID))
		return nil
	}
}
