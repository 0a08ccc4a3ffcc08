package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingRepo "buildbook/database/repository/booking"
	"buildbook/models"
)

// saveRetries bounds the optimistic-concurrency retry loop. With the
// per-booking lock held, conflicts only arise from out-of-band writers, so
// one retry is usually enough.
const saveRetries = 3

// StartBooking creates a new booking flow at IDLE and persists it.
func (s *DefaultBookingFlowService) StartBooking(ctx context.Context, clientID, builderID string) (*models.BookingContext, error) {
	if clientID == "" {
		return nil, NewFlowError("invalidInput", "clientId is required")
	}

	data := InitialStateData()
	bookingID := uuid.New().String()
	data.BookingID = bookingID
	data.ClientID = clientID
	data.BuilderID = builderID

	bc := models.BookingContext{
		BookingID: bookingID,
		State:     InitialState(),
		StateData: data,
	}
	if err := s.Repo.Create(bc); err != nil {
		return nil, fmt.Errorf("failed to create booking flow: %w", err)
	}
	bc.Version = 1

	s.Logger.Info("booking flow started",
		zap.String("bookingId", bookingID),
		zap.String("clientId", clientID),
		zap.String("builderId", builderID),
	)
	return &bc, nil
}

// ApplyEvent runs one transition for the booking under the per-booking lock:
// load, execute, save with the loaded version, retrying when a competing
// writer bumped the version. A failed transition (invalid event, malformed
// payload) is returned with Success: false and nothing persisted; an error
// return means the attempt itself could not run (missing booking, lock or
// storage trouble).
func (s *DefaultBookingFlowService) ApplyEvent(ctx context.Context, bookingID string, input models.EventInput) (models.TransitionResult, error) {
	release, err := s.Locker.Acquire(ctx, bookingID)
	if err != nil {
		return models.TransitionResult{}, fmt.Errorf("failed to serialize transition for %s: %w", bookingID, err)
	}
	defer release()

	var res models.TransitionResult
	for attempt := 0; attempt < saveRetries; attempt++ {
		bc, err := s.Repo.Load(bookingID)
		if err != nil {
			if errors.Is(err, bookingRepo.ErrNotFound) {
				return models.TransitionResult{}, ErrBookingNotFound
			}
			return models.TransitionResult{}, fmt.Errorf("failed to load booking %s: %w", bookingID, err)
		}

		res = s.Executor.ExecuteTransition(*bc, input)
		s.auditLog(bookingID, res)
		if !res.Success {
			return res, nil
		}

		err = s.Repo.Save(bookingID, res.CurrentState, res.StateData, bc.Version)
		if err == nil {
			s.afterTransition(ctx, bookingID, res)
			return res, nil
		}
		if !errors.Is(err, bookingRepo.ErrVersionConflict) {
			return models.TransitionResult{}, fmt.Errorf("failed to persist booking %s: %w", bookingID, err)
		}
		s.Logger.Warn("booking version conflict, retrying",
			zap.String("bookingId", bookingID),
			zap.String("event", string(input.Event)),
			zap.Int("attempt", attempt+1),
		)
	}
	return models.TransitionResult{}, fmt.Errorf("failed to persist booking %s: version conflicts exhausted retries", bookingID)
}

// GetBookingState loads the booking context and restores plaintext sensitive
// fields for the caller.
func (s *DefaultBookingFlowService) GetBookingState(ctx context.Context, bookingID string) (*models.BookingContext, error) {
	bc, err := s.Repo.Load(bookingID)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}
	data, err := s.Codec.DecryptSensitiveData(bc.StateData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode booking %s: %w", bookingID, err)
	}
	bc.StateData = data
	return bc, nil
}

// IssueStateToken binds the booking's current state into a bearer token the
// caller can later present to authorize an out-of-band continuation.
func (s *DefaultBookingFlowService) IssueStateToken(ctx context.Context, bookingID string) (string, error) {
	bc, err := s.Repo.Load(bookingID)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrNotFound) {
			return "", ErrBookingNotFound
		}
		return "", fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}
	return s.Tokens.Generate(bookingID, bc.State)
}

// VerifyStateToken checks a bearer token; tamper or malformation reports
// IsValid: false, never an error.
func (s *DefaultBookingFlowService) VerifyStateToken(token string) models.StateTokenResult {
	return s.Tokens.Verify(token)
}

// auditLog records every transition attempt with sensitive fields masked.
func (s *DefaultBookingFlowService) auditLog(bookingID string, res models.TransitionResult) {
	sanitized := s.Codec.SanitizeForLogging(res.StateData)
	fields := []zap.Field{
		zap.String("bookingId", bookingID),
		zap.String("event", string(res.Event)),
		zap.String("previousState", string(res.PreviousState)),
		zap.String("currentState", string(res.CurrentState)),
		zap.Time("timestamp", res.Timestamp),
		zap.Any("stateData", sanitized),
	}
	if res.Success {
		s.Logger.Info("booking transition applied", fields...)
		return
	}
	s.Logger.Warn("booking transition rejected", append(fields, zap.String("reason", res.Error))...)
}

// afterTransition runs the side effects a committed transition triggers:
// outcome notifications and the payment-expiry timer. Failures here never
// fail the transition itself.
func (s *DefaultBookingFlowService) afterTransition(ctx context.Context, bookingID string, res models.TransitionResult) {
	if s.Expiry != nil && res.CurrentState == models.StatePaymentPending {
		if err := s.Expiry.SchedulePaymentExpiry(ctx, bookingID, s.PaymentTimeout); err != nil {
			s.Logger.Error("failed to schedule payment expiry",
				zap.String("bookingId", bookingID), zap.Error(err))
		}
	}

	if s.NotificationSvc == nil {
		return
	}
	var err error
	switch res.CurrentState {
	case models.StateBookingConfirmed:
		err = s.NotificationSvc.NotifyBookingConfirmed(ctx, bookingID, res.StateData)
	case models.StateCancellationCompleted:
		err = s.NotificationSvc.NotifyBookingCancelled(ctx, bookingID, res.StateData)
	case models.StateRefundCompleted:
		err = s.NotificationSvc.NotifyRefundCompleted(ctx, bookingID, res.StateData)
	}
	if err != nil {
		s.Logger.Error("failed to send booking notification",
			zap.String("bookingId", bookingID),
			zap.String("state", string(res.CurrentState)),
			zap.Error(err),
		)
	}
}
