package booking

import (
	"fmt"
	"time"

	"buildbook/models"
)

// TransitionExecutor is the single authority that advances a BookingContext.
// It performs no I/O: the caller loads the context under its own per-booking
// serialization, calls ExecuteTransition, and persists the returned state
// data itself. Expected failures (invalid transition, malformed payload) are
// reported through TransitionResult.Success, never panics.
type TransitionExecutor struct {
	codec *StateDataCodec
}

func NewTransitionExecutor(codec *StateDataCodec) *TransitionExecutor {
	return &TransitionExecutor{codec: codec}
}

// ExecuteTransition validates the event against the current state, merges the
// event payload into the state data and returns the outcome. On failure the
// state is reported unchanged. Sensitive fields of the returned state data
// are encrypted, so the result is safe to hand to the persistence layer.
func (e *TransitionExecutor) ExecuteTransition(bc models.BookingContext, input models.EventInput) models.TransitionResult {
	now := time.Now().UTC()

	fail := func(reason string) models.TransitionResult {
		return models.TransitionResult{
			Success:       false,
			PreviousState: bc.State,
			CurrentState:  bc.State,
			StateData:     bc.StateData,
			Event:         input.Event,
			Timestamp:     now,
			Error:         reason,
		}
	}

	next, ok := NextState(bc.State, input.Event)
	if !ok {
		return fail(fmt.Sprintf("invalid transition: event %s is not allowed in state %s", input.Event, bc.State))
	}
	if reason := validatePayload(bc.State, input, next); reason != "" {
		return fail(reason)
	}

	data := mergeStateData(bc.StateData, input.Data)
	data.BookingID = bc.BookingID
	data.Timestamp = now

	switch {
	case next == models.StateError:
		err := *input.Data.Error
		if err.Timestamp.IsZero() {
			err.Timestamp = now
		}
		data.Error = &err
		data.PriorState = bc.State
	case input.Event == models.EventRecover:
		// Return to the state recorded before the error; IDLE when none was.
		if data.PriorState != "" {
			next = data.PriorState
		}
		data.Error = nil
		data.PriorState = ""
	}

	applyOutcome(&data, next, input.Event, now)

	encrypted, err := e.codec.EncryptSensitiveData(data)
	if err != nil {
		return fail(fmt.Sprintf("failed to protect state data: %v", err))
	}

	return models.TransitionResult{
		Success:       true,
		PreviousState: bc.State,
		CurrentState:  next,
		StateData:     encrypted,
		Event:         input.Event,
		Timestamp:     now,
	}
}

// validatePayload enforces the minimal per-event payload requirements. A
// violation fails the transition the same way an invalid event does.
func validatePayload(current models.BookingState, input models.EventInput, next models.BookingState) string {
	switch input.Event {
	case models.EventSelectSessionType:
		if input.Data.SessionTypeID == "" {
			return "malformed event payload: SELECT_SESSION_TYPE requires sessionTypeId"
		}
	case models.EventScheduleEvent:
		if input.Data.CalendlyEventID == "" {
			return "malformed event payload: SCHEDULE_EVENT requires calendlyEventId"
		}
		if input.Data.StartTime.IsZero() || input.Data.EndTime.IsZero() {
			return "malformed event payload: SCHEDULE_EVENT requires startTime and endTime"
		}
	case models.EventInitiatePayment:
		// The first INITIATE_PAYMENT only requests payment; the one that
		// moves the booking into PAYMENT_PENDING must carry the checkout
		// session created for it.
		if next == models.StatePaymentPending && input.Data.StripeSessionID == "" {
			return fmt.Sprintf("malformed event payload: INITIATE_PAYMENT from %s requires stripeSessionId", current)
		}
	case models.EventPaymentSucceeded:
		if input.Data.StripePaymentIntentID == "" {
			return "malformed event payload: PAYMENT_SUCCEEDED requires stripePaymentIntentId"
		}
	case models.EventErrorOccurred:
		if input.Data.Error == nil || input.Data.Error.Message == "" {
			return "malformed event payload: ERROR_OCCURRED requires an error with a message"
		}
	}
	return ""
}

// mergeStateData lays the non-zero fields of src over dst. Merging is
// additive: fields absent from src keep their current values.
func mergeStateData(dst, src models.BookingStateData) models.BookingStateData {
	if src.BuilderID != "" {
		dst.BuilderID = src.BuilderID
	}
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
	}
	if src.SessionTypeID != "" {
		dst.SessionTypeID = src.SessionTypeID
	}
	if !src.StartTime.IsZero() {
		dst.StartTime = src.StartTime
	}
	if !src.EndTime.IsZero() {
		dst.EndTime = src.EndTime
	}
	if src.CalendlyEventID != "" {
		dst.CalendlyEventID = src.CalendlyEventID
	}
	if src.CalendlyEventURI != "" {
		dst.CalendlyEventURI = src.CalendlyEventURI
	}
	if src.CalendlyInviteeURI != "" {
		dst.CalendlyInviteeURI = src.CalendlyInviteeURI
	}
	if src.StripeSessionID != "" {
		dst.StripeSessionID = src.StripeSessionID
	}
	if src.StripePaymentIntentID != "" {
		dst.StripePaymentIntentID = src.StripePaymentIntentID
	}
	if src.BookingStatus != "" {
		dst.BookingStatus = src.BookingStatus
	}
	if src.PaymentStatus != "" {
		dst.PaymentStatus = src.PaymentStatus
	}
	if src.CancelReason != "" {
		dst.CancelReason = src.CancelReason
	}
	if src.CancelledAt != nil {
		dst.CancelledAt = src.CancelledAt
	}
	if src.RefundAmount != 0 {
		dst.RefundAmount = src.RefundAmount
	}
	return dst
}

// applyOutcome keeps the bookingStatus/paymentStatus projections in step with
// the state the booking just entered.
func applyOutcome(data *models.BookingStateData, next models.BookingState, event models.BookingEvent, now time.Time) {
	switch next {
	case models.StatePaymentPending:
		data.PaymentStatus = "pending"
	case models.StatePaymentSucceeded:
		data.PaymentStatus = "succeeded"
	case models.StatePaymentFailed:
		data.PaymentStatus = "failed"
	case models.StateBookingConfirmed:
		data.BookingStatus = "confirmed"
	case models.StateCancellationRequested:
		data.BookingStatus = "cancellation_requested"
		if data.CancelledAt == nil {
			t := now
			data.CancelledAt = &t
		}
	case models.StateCancellationCompleted:
		data.BookingStatus = "cancelled"
	case models.StateRefundRequested:
		data.BookingStatus = "refund_requested"
	case models.StateRefundCompleted:
		data.BookingStatus = "refunded"
		data.PaymentStatus = "refunded"
	case models.StateBookingCompleted:
		data.BookingStatus = "completed"
	}
}
