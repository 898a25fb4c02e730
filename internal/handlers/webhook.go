package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/services"
)

const webhookMaxBodyBytes = 65536

type WebhookHandler struct {
	log             *logger.Logger
	checkoutService services.CheckoutService
	signingSecret   string
}

func NewWebhookHandler(log *logger.Logger, checkoutService services.CheckoutService, signingSecret string) *WebhookHandler {
	handlerLog := log.With("handler", "WebhookHandler")
	return &WebhookHandler{log: handlerLog, checkoutService: checkoutService, signingSecret: signingSecret}
}

// StripeWebhook verifies the event signature, extracts the purchase details
// from checkout.session.completed events and hands them to the checkout
// service. Other event types are acknowledged and ignored.
func (wh *WebhookHandler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookMaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read payload"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), wh.signingSecret)
	if err != nil {
		wh.log.Warn("webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	if event.Type != "checkout.session.completed" {
		wh.log.Debug("ignoring event", "type", event.Type)
		RespondOK(c, gin.H{"received": true})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		wh.log.Warn("could not decode checkout session", "event_id", event.ID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return
	}

	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}

	result, err := wh.checkoutService.HandleCheckoutCompleted(c.Request.Context(), services.CheckoutCompletedInput{
		EventID:       event.ID,
		CustomerEmail: email,
		CourseSKU:     session.Metadata["course_sku"],
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}
