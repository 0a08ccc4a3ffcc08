package models

import "time"

// CalendlyWebhookEvent is the envelope Calendly posts to the webhook
// endpoint. Only the fields the booking flow consumes are mapped.
type CalendlyWebhookEvent struct {
	Event   string                 `json:"event"`
	Payload CalendlyWebhookPayload `json:"payload"`
}

type CalendlyWebhookPayload struct {
	Event    CalendlyScheduledEvent `json:"scheduled_event"`
	URI      string                 `json:"uri"`
	Email    string                 `json:"email"`
	Tracking CalendlyTracking       `json:"tracking"`
}

type CalendlyScheduledEvent struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// CalendlyTracking carries the UTM fields of the scheduling link. The booking
// id is threaded through utm_content when the scheduling flow is initiated.
type CalendlyTracking struct {
	UTMSource  string `json:"utm_source"`
	UTMContent string `json:"utm_content"`
}
