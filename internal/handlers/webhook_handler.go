package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"payments-service/internal/models"
	"payments-service/internal/services"
)

// WebhookHandler receives gateway webhook deliveries
type WebhookHandler struct {
	service *services.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleStripeWebhook handles POST /webhooks/stripe. The raw body is passed
// through untouched because the signature covers the exact bytes.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: "Failed to read request body",
		})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.service.ProcessWebhook(c.Request.Context(), payload, signature); err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "Invalid webhook",
				Message: validationErr.Message,
				Code:    validationErr.Code,
			})
			return
		}
		// Processing failures get a 500 so the gateway redelivers.
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Internal error",
			Message: "Failed to process webhook event",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
