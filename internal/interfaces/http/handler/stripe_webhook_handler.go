package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	billingapp "github.com/audithero/apostle-video-platform-sub004/internal/application/billing"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Maximum webhook payload size. Stripe events are well below this.
const maxWebhookPayloadSize = 65536

// WebhookProcessor verifies and applies one payment processor event
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (*billingapp.WebhookResult, error)
}

// StripeWebhookHandler receives Stripe events. The route is authenticated by
// the payload signature, not by a bearer token.
type StripeWebhookHandler struct {
	BaseHandler
	processor WebhookProcessor
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler
func NewStripeWebhookHandler(processor WebhookProcessor) *StripeWebhookHandler {
	return &StripeWebhookHandler{processor: processor}
}

// RegisterRoutes mounts the webhook route
func (h *StripeWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/stripe", h.HandleStripeWebhook)
}

// StripeWebhookResponse is the acknowledgement sent back to Stripe
type StripeWebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// HandleStripeWebhook godoc
//
//	@ID				handleStripeWebhook
//	@Summary		Handle Stripe webhook
//	@Description	Fulfils pack and add-on payments and tracks subscription changes. Failed events answer 500 so Stripe redelivers them.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			Stripe-Signature	header		string					true	"Stripe webhook signature"
//	@Success		200					{object}	StripeWebhookResponse
//	@Failure		400					{object}	StripeWebhookResponse	"Invalid signature"
//	@Failure		413					{object}	StripeWebhookResponse	"Payload too large"
//	@Failure		500					{object}	StripeWebhookResponse	"Processing failed"
//	@Router			/webhooks/stripe [post]
func (h *StripeWebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// signature verification needs the raw body
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, StripeWebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, StripeWebhookResponse{Message: "Payload too large"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, StripeWebhookResponse{Message: "Missing Stripe-Signature header"})
		return
	}

	result, err := h.processor.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, billingapp.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, StripeWebhookResponse{Message: "Webhook signature verification failed"})
			return
		}

		_ = c.Error(err)
		resp := StripeWebhookResponse{Message: "Webhook processing failed"}
		if result != nil {
			resp.EventID = result.EventID
			resp.EventType = result.EventType
		}
		logger.GetGinLogger(c).Error("Stripe webhook failed",
			zap.String("event_id", resp.EventID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusOK, StripeWebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Duplicate: result.Duplicate,
		Message:   result.Message,
	})
}
