package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildbook/models"
)

func newTestExecutor(t *testing.T) (*TransitionExecutor, *StateDataCodec) {
	t.Helper()
	codec := newTestCodec(t)
	return NewTransitionExecutor(codec), codec
}

func newContextAt(state models.BookingState) models.BookingContext {
	return models.BookingContext{
		BookingID: "b1",
		State:     state,
		StateData: models.BookingStateData{BookingID: "b1", ClientID: "c1", BuilderID: "u1"},
	}
}

func TestInvalidTransitionDoesNotMutateState(t *testing.T) {
	exec, _ := newTestExecutor(t)
	bc := newContextAt(models.StateIdle)
	bc.StateData.SessionTypeID = "st-1"

	res := exec.ExecuteTransition(bc, models.EventInput{Event: models.EventPaymentSucceeded,
		Data: models.BookingStateData{StripePaymentIntentID: "pi_123456789"}})

	assert.False(t, res.Success)
	assert.Equal(t, models.StateIdle, res.PreviousState)
	assert.Equal(t, models.StateIdle, res.CurrentState)
	assert.Equal(t, bc.StateData, res.StateData)
	assert.Contains(t, res.Error, "invalid transition")
}

func TestMalformedPayloadFailsTransition(t *testing.T) {
	exec, _ := newTestExecutor(t)

	cases := []struct {
		name  string
		state models.BookingState
		input models.EventInput
	}{
		{"select without session type", models.StateIdle,
			models.EventInput{Event: models.EventSelectSessionType}},
		{"schedule without event id", models.StateCalendlySchedulingInitiated,
			models.EventInput{Event: models.EventScheduleEvent,
				Data: models.BookingStateData{StartTime: time.Now(), EndTime: time.Now().Add(time.Hour)}}},
		{"schedule without timing", models.StateCalendlySchedulingInitiated,
			models.EventInput{Event: models.EventScheduleEvent,
				Data: models.BookingStateData{CalendlyEventID: "ce-1"}}},
		{"payment pending without session", models.StatePaymentRequired,
			models.EventInput{Event: models.EventInitiatePayment}},
		{"payment succeeded without intent", models.StatePaymentPending,
			models.EventInput{Event: models.EventPaymentSucceeded}},
		{"error without message", models.StateIdle,
			models.EventInput{Event: models.EventErrorOccurred}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bc := newContextAt(tc.state)
			res := exec.ExecuteTransition(bc, tc.input)
			assert.False(t, res.Success)
			assert.Equal(t, tc.state, res.CurrentState)
			assert.Contains(t, res.Error, "malformed event payload")
		})
	}
}

func TestHappyPathEndToEnd(t *testing.T) {
	exec, codec := newTestExecutor(t)
	bc := newContextAt(models.StateIdle)

	steps := []struct {
		input models.EventInput
		want  models.BookingState
	}{
		{models.EventInput{Event: models.EventSelectSessionType,
			Data: models.BookingStateData{SessionTypeID: "s1"}}, models.StateSessionTypeSelected},
		{models.EventInput{Event: models.EventInitiateCalendlyScheduling}, models.StateCalendlySchedulingInitiated},
		{models.EventInput{Event: models.EventScheduleEvent,
			Data: models.BookingStateData{
				CalendlyEventID: "c1",
				StartTime:       time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
				EndTime:         time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
			}}, models.StateCalendlyEventScheduled},
		{models.EventInput{Event: models.EventInitiatePayment}, models.StatePaymentRequired},
		{models.EventInput{Event: models.EventInitiatePayment,
			Data: models.BookingStateData{StripeSessionID: "ss1_0123456789"}}, models.StatePaymentPending},
		{models.EventInput{Event: models.EventPaymentSucceeded,
			Data: models.BookingStateData{StripePaymentIntentID: "pi1_0123456789"}}, models.StatePaymentSucceeded},
		{models.EventInput{Event: models.EventStripeWebhookReceived}, models.StateBookingConfirmed},
	}

	for _, step := range steps {
		res := exec.ExecuteTransition(bc, step.input)
		require.True(t, res.Success, "event %s from %s: %s", step.input.Event, bc.State, res.Error)
		require.Equal(t, step.want, res.CurrentState)
		bc.State = res.CurrentState
		bc.StateData = res.StateData
	}

	// Accumulated fields survive every later transition.
	final, err := codec.DecryptSensitiveData(bc.StateData)
	require.NoError(t, err)
	assert.Equal(t, "s1", final.SessionTypeID)
	assert.Equal(t, "c1", final.CalendlyEventID)
	assert.Equal(t, "ss1_0123456789", final.StripeSessionID)
	assert.Equal(t, "pi1_0123456789", final.StripePaymentIntentID)
	assert.Equal(t, "confirmed", final.BookingStatus)
	assert.Equal(t, "succeeded", final.PaymentStatus)
}

func TestSensitiveFieldsEncryptedAtRest(t *testing.T) {
	exec, _ := newTestExecutor(t)
	bc := newContextAt(models.StatePaymentRequired)

	res := exec.ExecuteTransition(bc, models.EventInput{
		Event: models.EventInitiatePayment,
		Data:  models.BookingStateData{StripeSessionID: "ss1_0123456789"},
	})
	require.True(t, res.Success)
	assert.NotEqual(t, "ss1_0123456789", res.StateData.StripeSessionID)
	assert.Contains(t, res.StateData.StripeSessionID, "v1:")
}

func TestErrorRecoveryRoundTrip(t *testing.T) {
	exec, _ := newTestExecutor(t)

	for _, from := range []models.BookingState{
		models.StateIdle,
		models.StateCalendlyEventScheduled,
		models.StatePaymentPending,
		models.StateBookingConfirmed,
	} {
		bc := newContextAt(from)
		res := exec.ExecuteTransition(bc, models.EventInput{
			Event: models.EventErrorOccurred,
			Data:  models.BookingStateData{Error: &models.BookingError{Message: "X", Code: "E_TEST"}},
		})
		require.True(t, res.Success)
		require.Equal(t, models.StateError, res.CurrentState)
		require.NotNil(t, res.StateData.Error)
		assert.Equal(t, "X", res.StateData.Error.Message)
		assert.False(t, res.StateData.Error.Timestamp.IsZero())
		assert.Equal(t, from, res.StateData.PriorState)

		bc.State = res.CurrentState
		bc.StateData = res.StateData

		recovered := exec.ExecuteTransition(bc, models.EventInput{Event: models.EventRecover})
		require.True(t, recovered.Success)
		assert.Equal(t, from, recovered.CurrentState, "RECOVER must return to the state before the error")
		assert.Nil(t, recovered.StateData.Error)
		assert.Empty(t, recovered.StateData.PriorState)
	}
}

func TestRecoverWithoutPriorStateFallsBackToIdle(t *testing.T) {
	exec, _ := newTestExecutor(t)
	bc := newContextAt(models.StateError)
	bc.StateData.Error = &models.BookingError{Message: "orphaned", Timestamp: time.Now()}

	res := exec.ExecuteTransition(bc, models.EventInput{Event: models.EventRecover})
	require.True(t, res.Success)
	assert.Equal(t, models.StateIdle, res.CurrentState)
	assert.Nil(t, res.StateData.Error)
}

func TestCancellationScenario(t *testing.T) {
	exec, _ := newTestExecutor(t)
	bc := newContextAt(models.StateBookingConfirmed)
	cancelledAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	res := exec.ExecuteTransition(bc, models.EventInput{
		Event: models.EventRequestCancellation,
		Data:  models.BookingStateData{CancelReason: "x", CancelledAt: &cancelledAt},
	})
	require.True(t, res.Success)
	assert.Equal(t, models.StateCancellationRequested, res.CurrentState)
	assert.Equal(t, "x", res.StateData.CancelReason)
	require.NotNil(t, res.StateData.CancelledAt)
	assert.Equal(t, cancelledAt, *res.StateData.CancelledAt)
}

func TestMergeIsAdditive(t *testing.T) {
	exec, _ := newTestExecutor(t)
	bc := newContextAt(models.StateIdle)
	bc.StateData.SessionTypeID = "previous"

	res := exec.ExecuteTransition(bc, models.EventInput{
		Event: models.EventSelectSessionType,
		Data:  models.BookingStateData{SessionTypeID: "next"},
	})
	require.True(t, res.Success)
	// Incoming values overwrite; untouched fields survive.
	assert.Equal(t, "next", res.StateData.SessionTypeID)
	assert.Equal(t, "c1", res.StateData.ClientID)
	assert.Equal(t, "u1", res.StateData.BuilderID)
	assert.Equal(t, "b1", res.StateData.BookingID)
}

func TestReplayedPaymentOverwritesIntent(t *testing.T) {
	exec, codec := newTestExecutor(t)
	bc := newContextAt(models.StatePaymentPending)

	first := exec.ExecuteTransition(bc, models.EventInput{
		Event: models.EventPaymentSucceeded,
		Data:  models.BookingStateData{StripePaymentIntentID: "pi_first_000001"},
	})
	require.True(t, first.Success)

	// A replay with a different intent id is validated against the new
	// state and rejected; validation is per current state, not per event
	// history.
	bc.State = first.CurrentState
	bc.StateData = first.StateData
	replay := exec.ExecuteTransition(bc, models.EventInput{
		Event: models.EventPaymentSucceeded,
		Data:  models.BookingStateData{StripePaymentIntentID: "pi_second_00002"},
	})
	assert.False(t, replay.Success)

	decrypted, err := codec.DecryptSensitiveData(first.StateData)
	require.NoError(t, err)
	assert.Equal(t, "pi_first_000001", decrypted.StripePaymentIntentID)
}
