package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	bookingRepo "buildbook/database/repository/booking"
	"buildbook/models"
	"buildbook/services/notification"
	"buildbook/utils"
)

// BookingFlowService is the surface an outer layer (route handlers, webhook
// handlers, the expiry worker) drives the state machine through.
type BookingFlowService interface {
	StartBooking(ctx context.Context, clientID, builderID string) (*models.BookingContext, error)
	ApplyEvent(ctx context.Context, bookingID string, input models.EventInput) (models.TransitionResult, error)
	GetBookingState(ctx context.Context, bookingID string) (*models.BookingContext, error)
	IssueStateToken(ctx context.Context, bookingID string) (string, error)
	VerifyStateToken(token string) models.StateTokenResult
}

// ExpiryScheduler lets the flow service arm a payment-timeout task without
// depending on the worker package.
type ExpiryScheduler interface {
	SchedulePaymentExpiry(ctx context.Context, bookingID string, delay time.Duration) error
}

// DefaultBookingFlowService implements BookingFlowService.
type DefaultBookingFlowService struct {
	Repo            bookingRepo.BookingStateRepository
	Executor        *TransitionExecutor
	Codec           *StateDataCodec
	Tokens          *StateTokenManager
	Locker          *utils.BookingLocker
	NotificationSvc notification.NotificationService
	Expiry          ExpiryScheduler
	PaymentTimeout  time.Duration
	Logger          *zap.Logger
}
