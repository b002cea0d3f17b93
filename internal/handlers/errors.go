package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"payments-service/internal/gateway"
	"payments-service/internal/models"
)

// respondError maps service errors onto HTTP responses. Gateway failures are
// surfaced generically; processor error detail stays in the logs.
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: validationErr.Message,
			Code:    validationErr.Code,
		})
		return
	}

	var notFoundErr *models.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Not found",
			Message: notFoundErr.Error(),
		})
		return
	}

	var gatewayErr *gateway.GatewayError
	if errors.As(err, &gatewayErr) {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "Payment gateway error",
			Message: "The payment gateway could not process the request",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "Internal error",
		Message: "An unexpected error occurred",
	})
}
