package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payments-service/internal/models"
)

// LedgerStore is the persistence interface consumed by the services. It
// exists so services can be tested against mocks.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	GetTransactionByGatewayReference(ctx context.Context, ref string) (*models.PaymentTransaction, error)
	UpdateTransaction(ctx context.Context, tx *models.PaymentTransaction) error
	DeleteTransactionForTenant(ctx context.Context, tenantID string, id uuid.UUID) (int64, error)
	ListTransactionsByTenant(ctx context.Context, tenantID string) ([]models.PaymentTransaction, error)
	ListTransactionsByReservation(ctx context.Context, reservationID uuid.UUID, q models.TransactionQuery) ([]models.PaymentTransaction, error)
	ListCompletedChildRefunds(ctx context.Context, parentID uuid.UUID) ([]models.PaymentTransaction, error)
	FoldCompletedRefund(ctx context.Context, refundTx *models.PaymentTransaction, at time.Time) (int64, error)
	OverwriteRefundFields(ctx context.Context, id uuid.UUID, refunded, available decimal.Decimal, refundable bool) error

	CreateRefund(ctx context.Context, refund *models.Refund) error
	ListRefundsByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Refund, error)

	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	GetReservationByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Reservation, error)
	DecrementReservationTotal(ctx context.Context, reservationID uuid.UUID, amount decimal.Decimal) error

	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	GetWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error)
	UpdateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
}

// Ensure LedgerRepository implements the interface
var _ LedgerStore = (*LedgerRepository)(nil)
