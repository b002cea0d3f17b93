package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrorResponse is the generic error payload returned by all handlers
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// CreateTransactionRequest is the payload for POST /transactions. TenantID
// comes from the authenticated request context, never from the body.
type CreateTransactionRequest struct {
	TenantID            string              `json:"-"`
	ReservationID       *uuid.UUID          `json:"reservationId,omitempty"`
	Direction           string              `json:"transactionDirection" binding:"required"`
	TransactionType     string              `json:"transactionType,omitempty"`
	PaymentMethod       string              `json:"paymentMethod,omitempty"`
	PaymentStatus       string              `json:"paymentStatus,omitempty"`
	Amount              decimal.Decimal     `json:"amount" binding:"required"`
	ParentTransactionID *uuid.UUID          `json:"parentTransactionId,omitempty"`
	PaymentIntentID     string              `json:"paymentIntentId,omitempty"`
	PaymentMethodID     string              `json:"paymentMethodId,omitempty"`
	StripePaymentID     string              `json:"stripePaymentId,omitempty"`
	Metadata            TransactionMetadata `json:"metadata,omitempty"`
	InvoiceMessage      string              `json:"invoiceMessage,omitempty"`
	DueDate             *time.Time          `json:"dueDate,omitempty"`
}

// UpdateTransactionRequest is the payload for PATCH /transactions/:id.
// Nil pointers mean "leave unchanged".
type UpdateTransactionRequest struct {
	PaymentStatus   *string              `json:"paymentStatus,omitempty"`
	PaymentMethod   *string              `json:"paymentMethod,omitempty"`
	TransactionType *string              `json:"transactionType,omitempty"`
	PaymentIntentID *string              `json:"paymentIntentId,omitempty"`
	PaymentMethodID *string              `json:"paymentMethodId,omitempty"`
	StripePaymentID *string              `json:"stripePaymentId,omitempty"`
	InvoiceMessage  *string              `json:"invoiceMessage,omitempty"`
	DueDate         *time.Time           `json:"dueDate,omitempty"`
	Metadata        *TransactionMetadata `json:"metadata,omitempty"`
}

// TransactionQuery filters reservation-scoped reads
type TransactionQuery struct {
	PaymentMethod string `form:"paymentMethod"`
	PaymentStatus string `form:"paymentStatus"`
}

// ValidateRefundRequest is the payload for POST /refunds/validate
type ValidateRefundRequest struct {
	TransactionID uuid.UUID        `json:"transactionId" binding:"required"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

// RefundabilityResponse reports the outcome of the eligibility pipeline
type RefundabilityResponse struct {
	Refundable       bool                 `json:"refundable"`
	ReasonCode       string               `json:"reasonCode,omitempty"`
	Reason           string               `json:"reason,omitempty"`
	OriginalAmount   decimal.Decimal      `json:"originalAmount"`
	RefundedAmount   decimal.Decimal      `json:"refundedAmount"`
	AvailableAmount  decimal.Decimal      `json:"availableAmount"`
	Transaction      *PaymentTransaction  `json:"transaction,omitempty"`
	CompletedRefunds []PaymentTransaction `json:"completedRefunds,omitempty"`
}

// CreateRefundRequest is the payload for POST /refunds
type CreateRefundRequest struct {
	PaymentReference   string           `json:"paymentReference" binding:"required"`
	Amount             *decimal.Decimal `json:"amount,omitempty"`
	ChargeReference    string           `json:"chargeReference,omitempty"`
	ConnectedAccountID string           `json:"connectedAccountId,omitempty"`
	IdempotencyKey     string           `json:"idempotencyKey,omitempty"`
}

// RefundResponse is the success payload for an executed refund
type RefundResponse struct {
	RefundID        string          `json:"refundId"`
	GatewayRefundID string          `json:"gatewayRefundId"`
	ReservationID   string          `json:"reservationId"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	CreatedAt       string          `json:"createdAt"`
}

// ExecuteChargeRequest is the payload for POST /charges: create a charge
// transaction and confirm it synchronously against the gateway.
type ExecuteChargeRequest struct {
	TenantID          string              `json:"-"`
	ReservationID     *uuid.UUID          `json:"reservationId,omitempty"`
	Amount            decimal.Decimal     `json:"amount" binding:"required"`
	Currency          string              `json:"currency,omitempty"`
	CustomerEmail     string              `json:"customerEmail" binding:"required"`
	CustomerName      string              `json:"customerName,omitempty"`
	PaymentMethodID   string              `json:"paymentMethodId" binding:"required"`
	SavePaymentMethod bool                `json:"savePaymentMethod,omitempty"`
	Description       string              `json:"description,omitempty"`
	TransactionType   string              `json:"transactionType,omitempty"`
	Metadata          TransactionMetadata `json:"metadata,omitempty"`
}

// RepairResponse reports the result of rebuilding a charge's refund fields
// from gateway truth.
type RepairResponse struct {
	TransactionID         string          `json:"transactionId"`
	RefundedAmount        decimal.Decimal `json:"refundedAmount"`
	AvailableRefundAmount decimal.Decimal `json:"availableRefundAmount"`
	IsRefundable          bool            `json:"isRefundable"`
	GatewayRefundCount    int             `json:"gatewayRefundCount"`
	Drifted               bool            `json:"drifted"`
}
