package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"payments-service/internal/models"
	"payments-service/internal/services"
)

// TransactionHandler handles the transaction ledger HTTP surface
type TransactionHandler struct {
	service *services.TransactionService
	refunds *services.RefundService
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service *services.TransactionService, refunds *services.RefundService) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		refunds: refunds,
	}
}

// CreateTransaction handles POST /api/v1/transactions
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}
	// The authenticated tenant always wins over whatever the body carries.
	req.TenantID = c.GetString("tenantID")

	tx, err := h.service.CreateTransaction(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tx)
}

// GetTransaction handles GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid transaction ID",
			Message: err.Error(),
		})
		return
	}

	tx, err := h.service.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tx)
}

// UpdateTransaction handles PATCH /api/v1/transactions/:id
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid transaction ID",
			Message: err.Error(),
		})
		return
	}

	var req models.UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	tx, err := h.service.UpdateTransaction(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/v1/transactions/:id. Deleting a row
// another tenant owns, or one that does not exist, succeeds silently.
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid transaction ID",
			Message: err.Error(),
		})
		return
	}

	if err := h.service.DeleteTransaction(c.Request.Context(), c.GetString("tenantID"), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListTransactions handles GET /api/v1/transactions
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	txs, err := h.service.ListTransactionsByTenant(c.Request.Context(), c.GetString("tenantID"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

// ListReservationTransactions handles GET /api/v1/reservations/:reservationId/transactions
func (h *TransactionHandler) ListReservationTransactions(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("reservationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid reservation ID",
			Message: err.Error(),
		})
		return
	}

	var q models.TransactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid query",
			Message: err.Error(),
		})
		return
	}

	txs, err := h.service.ListTransactionsByReservation(c.Request.Context(), reservationID, q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

// ExecuteCharge handles POST /api/v1/charges
func (h *TransactionHandler) ExecuteCharge(c *gin.Context) {
	var req models.ExecuteChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}
	req.TenantID = c.GetString("tenantID")

	tx, err := h.service.ExecuteCharge(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tx)
}

// RefreshChargeStatus handles POST /api/v1/transactions/:id/refresh
func (h *TransactionHandler) RefreshChargeStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid transaction ID",
			Message: err.Error(),
		})
		return
	}

	tx, err := h.service.RefreshChargeStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tx)
}

// RepairRefundFields handles POST /api/v1/transactions/:id/repair
func (h *TransactionHandler) RepairRefundFields(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid transaction ID",
			Message: err.Error(),
		})
		return
	}

	result, err := h.refunds.RepairRefundFields(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
