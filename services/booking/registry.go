package booking

import (
	"time"

	"buildbook/models"
)

// transitions is the full transition table: current state -> accepted event
// -> next state. Built once at package load and never written afterwards.
// Terminal states have no entry, so every event is rejected once a booking
// reaches one. ERROR maps RECOVER to IDLE here; the executor substitutes the
// recorded prior state when the booking tracked one.
var transitions = map[models.BookingState]map[models.BookingEvent]models.BookingState{
	models.StateIdle: {
		models.EventSelectSessionType: models.StateSessionTypeSelected,
		models.EventErrorOccurred:     models.StateError,
	},
	models.StateSessionTypeSelected: {
		models.EventInitiateCalendlyScheduling: models.StateCalendlySchedulingInitiated,
		models.EventErrorOccurred:              models.StateError,
	},
	models.StateCalendlySchedulingInitiated: {
		models.EventScheduleEvent: models.StateCalendlyEventScheduled,
		models.EventErrorOccurred: models.StateError,
	},
	models.StateCalendlyEventScheduled: {
		models.EventInitiatePayment:     models.StatePaymentRequired,
		models.EventRequestCancellation: models.StateCancellationRequested,
		models.EventErrorOccurred:       models.StateError,
	},
	models.StatePaymentRequired: {
		models.EventInitiatePayment:     models.StatePaymentPending,
		models.EventRequestCancellation: models.StateCancellationRequested,
		models.EventErrorOccurred:       models.StateError,
	},
	models.StatePaymentPending: {
		models.EventPaymentSucceeded:    models.StatePaymentSucceeded,
		models.EventPaymentFailed:       models.StatePaymentFailed,
		models.EventRequestCancellation: models.StateCancellationRequested,
		models.EventErrorOccurred:       models.StateError,
	},
	models.StatePaymentSucceeded: {
		models.EventStripeWebhookReceived: models.StateBookingConfirmed,
		models.EventPaymentFailed:         models.StatePaymentFailed,
		models.EventErrorOccurred:         models.StateError,
	},
	models.StatePaymentFailed: {
		models.EventInitiatePayment:     models.StatePaymentPending,
		models.EventRequestCancellation: models.StateCancellationRequested,
		models.EventErrorOccurred:       models.StateError,
	},
	models.StateBookingConfirmed: {
		models.EventCompleteBooking:     models.StateBookingCompleted,
		models.EventRequestCancellation: models.StateCancellationRequested,
		models.EventRequestRefund:       models.StateRefundRequested,
		models.EventErrorOccurred:       models.StateError,
	},
	models.StateCancellationRequested: {
		models.EventConfirmCancellation: models.StateCancellationCompleted,
		models.EventRequestRefund:       models.StateRefundRequested,
		models.EventErrorOccurred:       models.StateError,
	},
	models.StateRefundRequested: {
		models.EventConfirmRefund: models.StateRefundCompleted,
		models.EventErrorOccurred: models.StateError,
	},
	models.StateError: {
		models.EventRecover: models.StateIdle,
	},
}

// AllStates lists every booking state, useful for exhaustive checks.
var AllStates = []models.BookingState{
	models.StateIdle,
	models.StateSessionTypeSelected,
	models.StateCalendlySchedulingInitiated,
	models.StateCalendlyEventScheduled,
	models.StatePaymentRequired,
	models.StatePaymentPending,
	models.StatePaymentSucceeded,
	models.StatePaymentFailed,
	models.StateBookingConfirmed,
	models.StateCancellationRequested,
	models.StateCancellationCompleted,
	models.StateRefundRequested,
	models.StateRefundCompleted,
	models.StateBookingCompleted,
	models.StateError,
}

// AllowedTransitions returns the set of events the given state accepts.
func AllowedTransitions(state models.BookingState) []models.BookingEvent {
	row, ok := transitions[state]
	if !ok {
		return nil
	}
	events := make([]models.BookingEvent, 0, len(row))
	for ev := range row {
		events = append(events, ev)
	}
	return events
}

// IsValidTransition reports whether event is accepted in the given state.
func IsValidTransition(state models.BookingState, event models.BookingEvent) bool {
	_, ok := transitions[state][event]
	return ok
}

// NextState returns the state the given event leads to from the given state,
// or empty when the transition is invalid. Callers must check the second
// return value; an invalid transition is a normal outcome, not an error.
func NextState(state models.BookingState, event models.BookingEvent) (models.BookingState, bool) {
	next, ok := transitions[state][event]
	return next, ok
}

// InitialState is where every booking flow begins.
func InitialState() models.BookingState {
	return models.StateIdle
}

// InitialStateData seeds a fresh flow's state data.
func InitialStateData() models.BookingStateData {
	return models.BookingStateData{Timestamp: time.Now().UTC()}
}
