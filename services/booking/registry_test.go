package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildbook/models"
)

func TestEveryNonTerminalStateHasOutgoingTransitions(t *testing.T) {
	for _, state := range AllStates {
		events := AllowedTransitions(state)
		if state.IsTerminal() {
			assert.Empty(t, events, "terminal state %s must accept no events", state)
			continue
		}
		require.NotEmpty(t, events, "non-terminal state %s must have outgoing transitions", state)
		if state != models.StateError {
			assert.True(t, IsValidTransition(state, models.EventErrorOccurred),
				"state %s must accept ERROR_OCCURRED", state)
		}
	}
}

func TestErrorStateRecovers(t *testing.T) {
	next, ok := NextState(models.StateError, models.EventRecover)
	require.True(t, ok)
	assert.Equal(t, models.StateIdle, next)
}

func TestNextStateIsDeterministic(t *testing.T) {
	cases := []struct {
		state models.BookingState
		event models.BookingEvent
		next  models.BookingState
	}{
		{models.StateIdle, models.EventSelectSessionType, models.StateSessionTypeSelected},
		{models.StateSessionTypeSelected, models.EventInitiateCalendlyScheduling, models.StateCalendlySchedulingInitiated},
		{models.StateCalendlySchedulingInitiated, models.EventScheduleEvent, models.StateCalendlyEventScheduled},
		{models.StateCalendlyEventScheduled, models.EventInitiatePayment, models.StatePaymentRequired},
		{models.StatePaymentRequired, models.EventInitiatePayment, models.StatePaymentPending},
		{models.StatePaymentPending, models.EventPaymentSucceeded, models.StatePaymentSucceeded},
		{models.StatePaymentPending, models.EventPaymentFailed, models.StatePaymentFailed},
		{models.StatePaymentSucceeded, models.EventStripeWebhookReceived, models.StateBookingConfirmed},
		{models.StatePaymentFailed, models.EventInitiatePayment, models.StatePaymentPending},
		{models.StateBookingConfirmed, models.EventRequestCancellation, models.StateCancellationRequested},
		{models.StateBookingConfirmed, models.EventCompleteBooking, models.StateBookingCompleted},
		{models.StateCancellationRequested, models.EventConfirmCancellation, models.StateCancellationCompleted},
		{models.StateCancellationRequested, models.EventRequestRefund, models.StateRefundRequested},
		{models.StateRefundRequested, models.EventConfirmRefund, models.StateRefundCompleted},
	}
	for _, tc := range cases {
		// Same inputs, same output, on repeat.
		for i := 0; i < 3; i++ {
			next, ok := NextState(tc.state, tc.event)
			require.True(t, ok, "%s + %s should be valid", tc.state, tc.event)
			assert.Equal(t, tc.next, next)
		}
	}
}

func TestInvalidPairsAreRejected(t *testing.T) {
	invalid := []struct {
		state models.BookingState
		event models.BookingEvent
	}{
		{models.StateIdle, models.EventPaymentSucceeded},
		{models.StateIdle, models.EventRecover},
		{models.StateSessionTypeSelected, models.EventScheduleEvent},
		{models.StatePaymentPending, models.EventSelectSessionType},
		{models.StateError, models.EventErrorOccurred},
	}
	for _, tc := range invalid {
		_, ok := NextState(tc.state, tc.event)
		assert.False(t, ok, "%s + %s should be invalid", tc.state, tc.event)
		assert.False(t, IsValidTransition(tc.state, tc.event))
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	terminals := []models.BookingState{
		models.StateBookingCompleted,
		models.StateCancellationCompleted,
		models.StateRefundCompleted,
	}
	events := []models.BookingEvent{
		models.EventSelectSessionType, models.EventInitiateCalendlyScheduling,
		models.EventScheduleEvent, models.EventInitiatePayment,
		models.EventPaymentSucceeded, models.EventPaymentFailed,
		models.EventStripeWebhookReceived, models.EventRequestCancellation,
		models.EventConfirmCancellation, models.EventRequestRefund,
		models.EventConfirmRefund, models.EventCompleteBooking,
		models.EventErrorOccurred, models.EventRecover,
	}
	for _, state := range terminals {
		for _, event := range events {
			assert.False(t, IsValidTransition(state, event),
				"terminal state %s must reject %s", state, event)
		}
	}
}

func TestInitialState(t *testing.T) {
	assert.Equal(t, models.StateIdle, InitialState())
	data := InitialStateData()
	assert.False(t, data.Timestamp.IsZero())
}
