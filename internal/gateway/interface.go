package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentGateway defines the boundary to the external card processor. All
// calls are remote and fallible, and none are exactly-once: callers must
// tolerate duplicate invocation.
type PaymentGateway interface {
	// GetPaymentIntent retrieves a payment intent by id
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)

	// GetPaymentIntentStatus retrieves just the status of a payment intent
	GetPaymentIntentStatus(ctx context.Context, id string) (string, error)

	// ListCharges lists charges created against a payment intent
	ListCharges(ctx context.Context, paymentIntentID string) ([]Charge, error)

	// GetCharge retrieves a charge by id
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)

	// ListRefunds lists the gateway's refund history for a charge. This is
	// the authoritative record of what has actually been executed.
	ListRefunds(ctx context.Context, chargeID string) ([]RefundRecord, error)

	// CreateRefund executes a refund, optionally scoped to a connected account
	CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResult, error)

	// AttachPaymentMethod attaches a payment method to a customer and sets
	// it as the customer's default.
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// GetOrCreateCustomer looks up a customer by email, creating one if none exists
	GetOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error)

	// CreateAndConfirmPaymentIntent creates a payment intent carrying
	// reservation/transaction metadata and confirms it in the same call.
	CreateAndConfirmPaymentIntent(ctx context.Context, req *CreateChargeRequest) (*ChargeResult, error)

	// VerifyWebhook verifies a webhook payload against the shared secret and
	// parses it. A verification failure is terminal.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// PaymentIntent is the gateway's view of an attempted or completed charge
type PaymentIntent struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	LatestChargeID string            `json:"latestChargeId,omitempty"`
	CustomerID     string            `json:"customerId,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Charge is the gateway's record of collected funds
type Charge struct {
	ID              string          `json:"id"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	AmountRefunded  decimal.Decimal `json:"amountRefunded"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	Created         int64           `json:"created"`
}

// RefundRecord is one entry in the gateway's refund history for a charge
type RefundRecord struct {
	ID      string          `json:"id"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
	Created int64           `json:"created"`
}

// RefundRequest asks the gateway to return funds
type RefundRequest struct {
	PaymentIntentID    string
	ChargeID           string
	Amount             decimal.Decimal // zero means full remaining amount
	ConnectedAccountID string
	IdempotencyKey     string
	Metadata           map[string]string
}

// RefundResult is the gateway's response to a refund execution
type RefundResult struct {
	GatewayRefundID string          `json:"gatewayRefundId"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// Customer is the gateway's customer record
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CreateChargeRequest creates and immediately confirms a payment intent
type CreateChargeRequest struct {
	Amount          decimal.Decimal
	Currency        string
	CustomerID      string
	PaymentMethodID string
	Description     string
	IdempotencyKey  string
	// Reservation/transaction linkage carried in gateway metadata
	TenantID      string
	ReservationID string
	TransactionID string
}

// ChargeResult is the outcome of a confirmed payment intent
type ChargeResult struct {
	PaymentIntentID string          `json:"paymentIntentId"`
	ChargeID        string          `json:"chargeId,omitempty"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// WebhookEvent is a verified, parsed gateway event
type WebhookEvent struct {
	EventID         string `json:"eventId"`
	EventType       string `json:"eventType"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	ChargeID        string `json:"chargeId,omitempty"`
	RawPayload      []byte `json:"-"`
}

// Gateway event types observed by the webhook processor
const (
	EventChargeSucceeded = "charge.succeeded"
	EventChargeFailed    = "charge.failed"
)

// GatewayError represents an error from the payment gateway. Internal detail
// stays here for logging; callers surface it generically.
type GatewayError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	DeclineCode string `json:"declineCode,omitempty"`
	Retryable   bool   `json:"retryable"`
}

func (e *GatewayError) Error() string {
	return e.Message
}

// NewGatewayError creates a new gateway error
func NewGatewayError(code, message string, retryable bool) *GatewayError {
	return &GatewayError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
	}
}
