package notification

import (
	"context"

	"go.uber.org/zap"

	"buildbook/models"
)

// NotificationService is notified after a booking reaches a user-visible
// outcome state. Delivery (push, email) is an external collaborator; the
// flow service only emits through this interface.
type NotificationService interface {
	NotifyBookingConfirmed(ctx context.Context, bookingID string, data models.BookingStateData) error
	NotifyBookingCancelled(ctx context.Context, bookingID string, data models.BookingStateData) error
	NotifyRefundCompleted(ctx context.Context, bookingID string, data models.BookingStateData) error
}

// LogNotificationService records booking outcomes in the structured log. It
// stands in wherever no delivery backend is wired.
type LogNotificationService struct {
	Logger *zap.Logger
}

func NewLogNotificationService(logger *zap.Logger) *LogNotificationService {
	return &LogNotificationService{Logger: logger}
}

func (s *LogNotificationService) NotifyBookingConfirmed(ctx context.Context, bookingID string, data models.BookingStateData) error {
	s.Logger.Info("booking confirmed",
		zap.String("bookingId", bookingID),
		zap.String("clientId", data.ClientID),
		zap.String("builderId", data.BuilderID),
		zap.Time("startTime", data.StartTime),
	)
	return nil
}

func (s *LogNotificationService) NotifyBookingCancelled(ctx context.Context, bookingID string, data models.BookingStateData) error {
	s.Logger.Info("booking cancelled",
		zap.String("bookingId", bookingID),
		zap.String("clientId", data.ClientID),
		zap.String("reason", data.CancelReason),
	)
	return nil
}

func (s *LogNotificationService) NotifyRefundCompleted(ctx context.Context, bookingID string, data models.BookingStateData) error {
	s.Logger.Info("refund completed",
		zap.String("bookingId", bookingID),
		zap.String("clientId", data.ClientID),
		zap.Int64("refundAmount", data.RefundAmount),
	)
	return nil
}
