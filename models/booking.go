package models

import "time"

// BookingState is one discrete phase of a booking's lifecycle.
type BookingState string

const (
	StateIdle                        BookingState = "IDLE"
	StateSessionTypeSelected         BookingState = "SESSION_TYPE_SELECTED"
	StateCalendlySchedulingInitiated BookingState = "CALENDLY_SCHEDULING_INITIATED"
	StateCalendlyEventScheduled      BookingState = "CALENDLY_EVENT_SCHEDULED"
	StatePaymentRequired             BookingState = "PAYMENT_REQUIRED"
	StatePaymentPending              BookingState = "PAYMENT_PENDING"
	StatePaymentSucceeded            BookingState = "PAYMENT_SUCCEEDED"
	StatePaymentFailed               BookingState = "PAYMENT_FAILED"
	StateBookingConfirmed            BookingState = "BOOKING_CONFIRMED"
	StateCancellationRequested       BookingState = "CANCELLATION_REQUESTED"
	StateCancellationCompleted       BookingState = "CANCELLATION_COMPLETED"
	StateRefundRequested             BookingState = "REFUND_REQUESTED"
	StateRefundCompleted             BookingState = "REFUND_COMPLETED"
	StateBookingCompleted            BookingState = "BOOKING_COMPLETED"
	StateError                       BookingState = "ERROR"
)

// IsTerminal reports whether the state accepts no further events.
func (s BookingState) IsTerminal() bool {
	switch s {
	case StateBookingCompleted, StateCancellationCompleted, StateRefundCompleted:
		return true
	}
	return false
}

// BookingEvent is an external trigger requesting a state change.
type BookingEvent string

const (
	EventSelectSessionType          BookingEvent = "SELECT_SESSION_TYPE"
	EventInitiateCalendlyScheduling BookingEvent = "INITIATE_CALENDLY_SCHEDULING"
	EventScheduleEvent              BookingEvent = "SCHEDULE_EVENT"
	EventInitiatePayment            BookingEvent = "INITIATE_PAYMENT"
	EventPaymentSucceeded           BookingEvent = "PAYMENT_SUCCEEDED"
	EventPaymentFailed              BookingEvent = "PAYMENT_FAILED"
	EventStripeWebhookReceived      BookingEvent = "STRIPE_WEBHOOK_RECEIVED"
	EventRequestCancellation        BookingEvent = "REQUEST_CANCELLATION"
	EventConfirmCancellation        BookingEvent = "CONFIRM_CANCELLATION"
	EventRequestRefund              BookingEvent = "REQUEST_REFUND"
	EventConfirmRefund              BookingEvent = "CONFIRM_REFUND"
	EventCompleteBooking            BookingEvent = "COMPLETE_BOOKING"
	EventErrorOccurred              BookingEvent = "ERROR_OCCURRED"
	EventRecover                    BookingEvent = "RECOVER"
)

// BookingError captures the failure a booking carries while in the ERROR state.
type BookingError struct {
	Message   string    `bson:"message" json:"message"`
	Code      string    `bson:"code,omitempty" json:"code,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// BookingStateData is the accumulated data of a booking flow. Fields are
// additive across transitions: once set, a field survives later transitions
// unless an event's handler explicitly clears it (RECOVER clears Error and
// PriorState). StripeSessionID and StripePaymentIntentID are sensitive and
// are stored encrypted past the executor boundary.
type BookingStateData struct {
	BookingID     string    `bson:"booking_id,omitempty" json:"bookingId,omitempty"`
	BuilderID     string    `bson:"builder_id,omitempty" json:"builderId,omitempty"`
	ClientID      string    `bson:"client_id,omitempty" json:"clientId,omitempty"`
	SessionTypeID string    `bson:"session_type_id,omitempty" json:"sessionTypeId,omitempty"`
	Timestamp     time.Time `bson:"timestamp,omitempty" json:"timestamp,omitempty"`

	StartTime          time.Time `bson:"start_time,omitempty" json:"startTime,omitempty"`
	EndTime            time.Time `bson:"end_time,omitempty" json:"endTime,omitempty"`
	CalendlyEventID    string    `bson:"calendly_event_id,omitempty" json:"calendlyEventId,omitempty"`
	CalendlyEventURI   string    `bson:"calendly_event_uri,omitempty" json:"calendlyEventUri,omitempty"`
	CalendlyInviteeURI string    `bson:"calendly_invitee_uri,omitempty" json:"calendlyInviteeUri,omitempty"`

	StripeSessionID       string `bson:"stripe_session_id,omitempty" json:"stripeSessionId,omitempty"`
	StripePaymentIntentID string `bson:"stripe_payment_intent_id,omitempty" json:"stripePaymentIntentId,omitempty"`

	BookingStatus string     `bson:"booking_status,omitempty" json:"bookingStatus,omitempty"`
	PaymentStatus string     `bson:"payment_status,omitempty" json:"paymentStatus,omitempty"`
	CancelReason  string     `bson:"cancel_reason,omitempty" json:"cancelReason,omitempty"`
	CancelledAt   *time.Time `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	RefundAmount  int64      `bson:"refund_amount,omitempty" json:"refundAmount,omitempty"`

	Error *BookingError `bson:"error,omitempty" json:"error,omitempty"`
	// PriorState records the state the booking was in when ERROR_OCCURRED
	// fired, so RECOVER can return to it.
	PriorState BookingState `bson:"prior_state,omitempty" json:"priorState,omitempty"`
}

// BookingContext is the unit a transition operates on. Version is the
// optimistic-concurrency token of the persisted document; Save fails when it
// no longer matches, so racing transitions cannot both commit against the
// same snapshot.
type BookingContext struct {
	BookingID string           `bson:"booking_id" json:"bookingId"`
	State     BookingState     `bson:"state" json:"state"`
	StateData BookingStateData `bson:"state_data" json:"stateData"`
	Version   int64            `bson:"version" json:"version"`
}

// EventInput carries an event and its payload into a transition.
type EventInput struct {
	Event BookingEvent     `json:"event"`
	Data  BookingStateData `json:"data"`
}

// TransitionResult describes one transition attempt. It is created fresh per
// attempt and never mutated after return. A failed attempt reports
// CurrentState == PreviousState and a descriptive Error.
type TransitionResult struct {
	Success       bool             `json:"success"`
	PreviousState BookingState     `json:"previousState"`
	CurrentState  BookingState     `json:"currentState"`
	StateData     BookingStateData `json:"stateData"`
	Event         BookingEvent     `json:"event"`
	Timestamp     time.Time        `json:"timestamp"`
	Error         string           `json:"error,omitempty"`
}

// StateTokenResult is the outcome of verifying a state token. When IsValid is
// false no other field is populated.
type StateTokenResult struct {
	IsValid   bool         `json:"isValid"`
	BookingID string       `json:"bookingId,omitempty"`
	State     BookingState `json:"state,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
}
