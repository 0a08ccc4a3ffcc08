package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"buildbook/config"
	"buildbook/models"
	"buildbook/services/booking"
)

// dedupeTTL bounds how long delivered webhook event ids are remembered.
// Stripe and Calendly both deliver at-least-once; the transition layer must
// only see each event once.
const dedupeTTL = 24 * time.Hour

// WebhookHandler turns payment and scheduling provider callbacks into
// booking events. Signature verification happens here, at the boundary; the
// state machine never sees an unauthenticated payload.
type WebhookHandler struct {
	Flow   booking.BookingFlowService
	Cache  *redis.Client
	Logger *zap.Logger
}

func NewWebhookHandler(flow booking.BookingFlowService, cache *redis.Client, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{Flow: flow, Cache: cache, Logger: logger}
}

// seenEvent records the event id and reports whether it was already
// delivered. Fail-open: if Redis is down, the event is processed; a replayed
// transition is rejected by state validation anyway.
func (h *WebhookHandler) seenEvent(c *gin.Context, provider, eventID string) bool {
	if eventID == "" {
		return false
	}
	set, err := h.Cache.SetNX(c.Request.Context(), "webhook:"+provider+":"+eventID, 1, dedupeTTL).Result()
	if err != nil {
		h.Logger.Warn("webhook dedupe unavailable", zap.Error(err))
		return false
	}
	return !set
}

// StripeWebhookHandler verifies and dispatches Stripe events. Replays and
// transitions rejected by the state machine are acknowledged with 200 so
// Stripe stops retrying them.
func (h *WebhookHandler) StripeWebhookHandler(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}
	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), config.AppConfig.StripeWebhookSecret)
	if err != nil {
		h.Logger.Warn("stripe webhook signature rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}
	if h.seenEvent(c, "stripe", event.ID) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	var (
		input     models.EventInput
		bookingID string
	)
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed checkout session"})
			return
		}
		bookingID = session.Metadata["booking_id"]
		input = models.EventInput{
			Event: models.EventPaymentSucceeded,
			Data:  models.BookingStateData{StripeSessionID: session.ID, StripePaymentIntentID: paymentIntentID(&session)},
		}
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payment intent"})
			return
		}
		bookingID = intent.Metadata["booking_id"]
		input = models.EventInput{
			Event: models.EventStripeWebhookReceived,
			Data:  models.BookingStateData{StripePaymentIntentID: intent.ID},
		}
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payment intent"})
			return
		}
		bookingID = intent.Metadata["booking_id"]
		input = models.EventInput{
			Event: models.EventPaymentFailed,
			Data:  models.BookingStateData{StripePaymentIntentID: intent.ID},
		}
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if bookingID == "" {
		h.Logger.Warn("stripe event without booking_id metadata", zap.String("eventType", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"status": "unroutable"})
		return
	}

	res, err := h.Flow.ApplyEvent(c.Request.Context(), bookingID, input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": res.Success, "state": res.CurrentState})
}

// CalendlyWebhookHandler verifies and dispatches Calendly invitee events. The
// scheduling link threads the booking id through utm_content.
func (h *WebhookHandler) CalendlyWebhookHandler(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}
	if !verifyCalendlySignature(payload, c.GetHeader("Calendly-Webhook-Signature"), config.AppConfig.CalendlySigningKey) {
		h.Logger.Warn("calendly webhook signature rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	var event models.CalendlyWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	bookingID := event.Payload.Tracking.UTMContent
	if bookingID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "unroutable"})
		return
	}
	if h.seenEvent(c, "calendly", event.Event+":"+event.Payload.URI) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	var input models.EventInput
	switch event.Event {
	case "invitee.created":
		input = models.EventInput{
			Event: models.EventScheduleEvent,
			Data: models.BookingStateData{
				CalendlyEventID:    eventIDFromURI(event.Payload.Event.URI),
				CalendlyEventURI:   event.Payload.Event.URI,
				CalendlyInviteeURI: event.Payload.URI,
				StartTime:          event.Payload.Event.StartTime,
				EndTime:            event.Payload.Event.EndTime,
			},
		}
	case "invitee.canceled":
		input = models.EventInput{
			Event: models.EventRequestCancellation,
			Data:  models.BookingStateData{CancelReason: "calendly event canceled"},
		}
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	res, err := h.Flow.ApplyEvent(c.Request.Context(), bookingID, input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": res.Success, "state": res.CurrentState})
}

// verifyCalendlySignature checks the "t=<ts>,v1=<hex hmac>" header Calendly
// signs its deliveries with.
func verifyCalendlySignature(payload []byte, header, key string) bool {
	if header == "" || key == "" {
		return false
	}
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			sig = kv[1]
		}
	}
	if ts == "" || sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

func paymentIntentID(session *stripe.CheckoutSession) string {
	if session.PaymentIntent != nil {
		return session.PaymentIntent.ID
	}
	return ""
}

// eventIDFromURI extracts the trailing id segment of a Calendly resource URI.
func eventIDFromURI(uri string) string {
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}
