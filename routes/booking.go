package routes

import (
	"github.com/gin-gonic/gin"

	"buildbook/handlers"
	"buildbook/middleware"
)

// RegisterBookingRoutes registers all endpoints for the booking state machine.
// Client-initiated transitions require a bearer token; the payment-return
// continuation authorizes itself with a state token instead.
func RegisterBookingRoutes(r *gin.Engine, h *handlers.BookingHandler) {
	r.GET("/api/bookings/payment/return", h.PaymentReturnHandler)

	api := r.Group("/api/bookings")
	api.Use(middleware.ClientAuthMiddleware())
	{
		api.POST("", h.CreateBookingHandler)
		api.GET("/:bookingID", h.GetBookingStateHandler)
		api.POST("/:bookingID/session-type", h.SelectSessionTypeHandler)
		api.POST("/:bookingID/scheduling", h.InitiateSchedulingHandler)
		api.POST("/:bookingID/schedule", h.ScheduleEventHandler)
		api.POST("/:bookingID/payment", h.InitiatePaymentHandler)
		api.POST("/:bookingID/cancel", h.RequestCancellationHandler)
		api.POST("/:bookingID/cancel/confirm", h.ConfirmCancellationHandler)
		api.POST("/:bookingID/refund", h.RequestRefundHandler)
		api.POST("/:bookingID/refund/confirm", h.ConfirmRefundHandler)
		api.POST("/:bookingID/complete", h.CompleteBookingHandler)
		api.POST("/:bookingID/recover", h.RecoverHandler)
		api.POST("/:bookingID/state-token", h.IssueStateTokenHandler)
	}
}

// RegisterWebhookRoutes registers the provider callback endpoints. They are
// authenticated by payload signature, not by bearer token.
func RegisterWebhookRoutes(r *gin.Engine, h *handlers.WebhookHandler) {
	webhooks := r.Group("/api/webhooks")
	{
		webhooks.POST("/stripe", h.StripeWebhookHandler)
		webhooks.POST("/calendly", h.CalendlyWebhookHandler)
	}
}
