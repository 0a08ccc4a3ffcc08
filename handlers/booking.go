package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildbook/models"
	"buildbook/services/booking"
)

// BookingHandler exposes the booking state machine over HTTP. Every endpoint
// is a thin wrapper: it binds input, applies one event through the flow
// service, and maps the TransitionResult onto the response.
type BookingHandler struct {
	Flow   booking.BookingFlowService
	Codec  *booking.StateDataCodec
	Logger *zap.Logger
}

func NewBookingHandler(flow booking.BookingFlowService, codec *booking.StateDataCodec, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Flow: flow, Codec: codec, Logger: logger}
}

// respondTransition maps a transition outcome onto HTTP: failed validation is
// a 409 with the reason, success is a 200 carrying the new state. Sensitive
// fields are masked before they reach the wire.
func (h *BookingHandler) respondTransition(c *gin.Context, res models.TransitionResult, err error) {
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process booking transition", "details": err.Error()})
		return
	}
	body := gin.H{
		"success":       res.Success,
		"previousState": res.PreviousState,
		"currentState":  res.CurrentState,
		"event":         res.Event,
		"timestamp":     res.Timestamp,
		"stateData":     h.Codec.SanitizeForLogging(res.StateData),
	}
	if !res.Success {
		body["error"] = res.Error
		c.JSON(http.StatusConflict, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// CreateBookingHandler starts a new booking flow at IDLE.
func (h *BookingHandler) CreateBookingHandler(c *gin.Context) {
	var input struct {
		BuilderID string `json:"builderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	clientID := c.GetString("clientID")
	if clientID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing client identity"})
		return
	}

	bc, err := h.Flow.StartBooking(c.Request.Context(), clientID, input.BuilderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start booking", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"bookingId": bc.BookingID,
		"state":     bc.State,
		"stateData": h.Codec.SanitizeForLogging(bc.StateData),
	})
}

// GetBookingStateHandler returns the current state of a booking.
func (h *BookingHandler) GetBookingStateHandler(c *gin.Context) {
	bookingID := c.Param("bookingID")
	bc, err := h.Flow.GetBookingState(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load booking", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookingId": bc.BookingID,
		"state":     bc.State,
		"stateData": h.Codec.SanitizeForLogging(bc.StateData),
	})
}

// SelectSessionTypeHandler applies SELECT_SESSION_TYPE.
func (h *BookingHandler) SelectSessionTypeHandler(c *gin.Context) {
	var input struct {
		SessionTypeID string `json:"sessionTypeId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventSelectSessionType,
		Data:  models.BookingStateData{SessionTypeID: input.SessionTypeID},
	})
	h.respondTransition(c, res, err)
}

// InitiateSchedulingHandler applies INITIATE_CALENDLY_SCHEDULING.
func (h *BookingHandler) InitiateSchedulingHandler(c *gin.Context) {
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventInitiateCalendlyScheduling,
	})
	h.respondTransition(c, res, err)
}

// ScheduleEventHandler applies SCHEDULE_EVENT directly, for clients that
// confirm the Calendly slot themselves rather than through the webhook.
func (h *BookingHandler) ScheduleEventHandler(c *gin.Context) {
	var input struct {
		CalendlyEventID    string    `json:"calendlyEventId" binding:"required"`
		CalendlyEventURI   string    `json:"calendlyEventUri"`
		CalendlyInviteeURI string    `json:"calendlyInviteeUri"`
		StartTime          time.Time `json:"startTime" binding:"required"`
		EndTime            time.Time `json:"endTime" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventScheduleEvent,
		Data: models.BookingStateData{
			CalendlyEventID:    input.CalendlyEventID,
			CalendlyEventURI:   input.CalendlyEventURI,
			CalendlyInviteeURI: input.CalendlyInviteeURI,
			StartTime:          input.StartTime,
			EndTime:            input.EndTime,
		},
	})
	h.respondTransition(c, res, err)
}

// InitiatePaymentHandler applies INITIATE_PAYMENT. The first call (from
// CALENDLY_EVENT_SCHEDULED) carries no session; the second (from
// PAYMENT_REQUIRED) carries the Stripe checkout session created for it.
func (h *BookingHandler) InitiatePaymentHandler(c *gin.Context) {
	var input struct {
		StripeSessionID string `json:"stripeSessionId"`
	}
	// An empty body is fine for the first initiation.
	_ = c.ShouldBindJSON(&input)
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventInitiatePayment,
		Data:  models.BookingStateData{StripeSessionID: input.StripeSessionID},
	})
	h.respondTransition(c, res, err)
}

// RequestCancellationHandler applies REQUEST_CANCELLATION.
func (h *BookingHandler) RequestCancellationHandler(c *gin.Context) {
	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&input)
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventRequestCancellation,
		Data:  models.BookingStateData{CancelReason: input.Reason},
	})
	h.respondTransition(c, res, err)
}

// ConfirmCancellationHandler applies CONFIRM_CANCELLATION.
func (h *BookingHandler) ConfirmCancellationHandler(c *gin.Context) {
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventConfirmCancellation,
	})
	h.respondTransition(c, res, err)
}

// RequestRefundHandler applies REQUEST_REFUND.
func (h *BookingHandler) RequestRefundHandler(c *gin.Context) {
	var input struct {
		RefundAmount int64 `json:"refundAmount"`
	}
	_ = c.ShouldBindJSON(&input)
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventRequestRefund,
		Data:  models.BookingStateData{RefundAmount: input.RefundAmount},
	})
	h.respondTransition(c, res, err)
}

// ConfirmRefundHandler applies CONFIRM_REFUND.
func (h *BookingHandler) ConfirmRefundHandler(c *gin.Context) {
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventConfirmRefund,
	})
	h.respondTransition(c, res, err)
}

// CompleteBookingHandler applies COMPLETE_BOOKING.
func (h *BookingHandler) CompleteBookingHandler(c *gin.Context) {
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventCompleteBooking,
	})
	h.respondTransition(c, res, err)
}

// RecoverHandler applies RECOVER, clearing the stored error and returning the
// booking to the state it held before ERROR_OCCURRED.
func (h *BookingHandler) RecoverHandler(c *gin.Context) {
	res, err := h.Flow.ApplyEvent(c.Request.Context(), c.Param("bookingID"), models.EventInput{
		Event: models.EventRecover,
	})
	h.respondTransition(c, res, err)
}

// IssueStateTokenHandler returns a bearer token binding the booking's current
// state, used to authorize the payment-return continuation.
func (h *BookingHandler) IssueStateTokenHandler(c *gin.Context) {
	token, err := h.Flow.IssueStateToken(c.Request.Context(), c.Param("bookingID"))
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue state token", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stateToken": token})
}

// PaymentReturnHandler handles the redirect back from the payment provider.
// The request carries no live session; the state token issued before the
// redirect authorizes it. A valid token for a PAYMENT_PENDING booking applies
// PAYMENT_SUCCEEDED with the returned payment intent.
func (h *BookingHandler) PaymentReturnHandler(c *gin.Context) {
	token := c.Query("token")
	paymentIntentID := c.Query("payment_intent")
	verified := h.Flow.VerifyStateToken(token)
	if !verified.IsValid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid state token"})
		return
	}
	if verified.State != models.StatePaymentPending {
		c.JSON(http.StatusConflict, gin.H{"error": "state token does not authorize payment completion", "state": verified.State})
		return
	}
	res, err := h.Flow.ApplyEvent(c.Request.Context(), verified.BookingID, models.EventInput{
		Event: models.EventPaymentSucceeded,
		Data:  models.BookingStateData{StripePaymentIntentID: paymentIntentID},
	})
	h.respondTransition(c, res, err)
}
