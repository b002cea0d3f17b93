package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"payments-service/internal/models"
	"payments-service/internal/services"
)

// RefundHandler handles refund validation and execution requests
type RefundHandler struct {
	service *services.RefundService
}

// NewRefundHandler creates a new refund handler
func NewRefundHandler(service *services.RefundService) *RefundHandler {
	return &RefundHandler{service: service}
}

// ValidateRefund handles POST /api/v1/refunds/validate. Ineligibility is a
// 200 with refundable=false and a reason, not an error.
func (h *RefundHandler) ValidateRefund(c *gin.Context) {
	var req models.ValidateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	result, err := h.service.ValidateRefundability(c.Request.Context(), req.TransactionID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreateRefund handles POST /api/v1/refunds
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	var req models.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	result, err := h.service.CreateRefund(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListReservationRefunds handles GET /api/v1/reservations/:reservationId/refunds
func (h *RefundHandler) ListReservationRefunds(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("reservationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid reservation ID",
			Message: err.Error(),
		})
		return
	}

	refunds, err := h.service.ListRefunds(c.Request.Context(), reservationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"refunds": refunds, "count": len(refunds)})
}
