package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"payments-service/internal/clients"
	"payments-service/internal/gateway"
	"payments-service/internal/idempotency"
	"payments-service/internal/models"
	"payments-service/internal/repository"
)

// MockLedgerStore is a mock implementation of repository.LedgerStore
type MockLedgerStore struct {
	mock.Mock
}

// Ensure MockLedgerStore implements the interface
var _ repository.LedgerStore = (*MockLedgerStore)(nil)

func (m *MockLedgerStore) CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	args := m.Called(ctx, tx)
	if args.Error(0) == nil && tx.ID == uuid.Nil {
		tx.ID = uuid.New()
		tx.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockLedgerStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *MockLedgerStore) GetTransactionByGatewayReference(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *MockLedgerStore) UpdateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLedgerStore) DeleteTransactionForTenant(ctx context.Context, tenantID string, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerStore) ListTransactionsByTenant(ctx context.Context, tenantID string) ([]models.PaymentTransaction, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]models.PaymentTransaction), args.Error(1)
}

func (m *MockLedgerStore) ListTransactionsByReservation(ctx context.Context, reservationID uuid.UUID, q models.TransactionQuery) ([]models.PaymentTransaction, error) {
	args := m.Called(ctx, reservationID, q)
	return args.Get(0).([]models.PaymentTransaction), args.Error(1)
}

func (m *MockLedgerStore) ListCompletedChildRefunds(ctx context.Context, parentID uuid.UUID) ([]models.PaymentTransaction, error) {
	args := m.Called(ctx, parentID)
	return args.Get(0).([]models.PaymentTransaction), args.Error(1)
}

func (m *MockLedgerStore) FoldCompletedRefund(ctx context.Context, refundTx *models.PaymentTransaction, at time.Time) (int64, error) {
	args := m.Called(ctx, refundTx, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerStore) OverwriteRefundFields(ctx context.Context, id uuid.UUID, refunded, available decimal.Decimal, refundable bool) error {
	args := m.Called(ctx, id, refunded, available, refundable)
	return args.Error(0)
}

func (m *MockLedgerStore) CreateRefund(ctx context.Context, refund *models.Refund) error {
	args := m.Called(ctx, refund)
	if args.Error(0) == nil && refund.ID == uuid.Nil {
		refund.ID = uuid.New()
		refund.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockLedgerStore) ListRefundsByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Refund, error) {
	args := m.Called(ctx, reservationID)
	return args.Get(0).([]models.Refund), args.Error(1)
}

func (m *MockLedgerStore) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockLedgerStore) GetReservationByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Reservation, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockLedgerStore) DecrementReservationTotal(ctx context.Context, reservationID uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, reservationID, amount)
	return args.Error(0)
}

func (m *MockLedgerStore) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockLedgerStore) GetWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WebhookEvent), args.Error(1)
}

func (m *MockLedgerStore) UpdateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockPaymentGateway is a mock implementation of gateway.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

// Ensure MockPaymentGateway implements the interface
var _ gateway.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) GetPaymentIntent(ctx context.Context, id string) (*gateway.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentIntent), args.Error(1)
}

func (m *MockPaymentGateway) GetPaymentIntentStatus(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) ListCharges(ctx context.Context, paymentIntentID string) ([]gateway.Charge, error) {
	args := m.Called(ctx, paymentIntentID)
	return args.Get(0).([]gateway.Charge), args.Error(1)
}

func (m *MockPaymentGateway) GetCharge(ctx context.Context, chargeID string) (*gateway.Charge, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Charge), args.Error(1)
}

func (m *MockPaymentGateway) ListRefunds(ctx context.Context, chargeID string) ([]gateway.RefundRecord, error) {
	args := m.Called(ctx, chargeID)
	return args.Get(0).([]gateway.RefundRecord), args.Error(1)
}

func (m *MockPaymentGateway) CreateRefund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

func (m *MockPaymentGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	args := m.Called(ctx, customerID, paymentMethodID)
	return args.Error(0)
}

func (m *MockPaymentGateway) GetOrCreateCustomer(ctx context.Context, email, name string) (*gateway.Customer, error) {
	args := m.Called(ctx, email, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Customer), args.Error(1)
}

func (m *MockPaymentGateway) CreateAndConfirmPaymentIntent(ctx context.Context, req *gateway.CreateChargeRequest) (*gateway.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeResult), args.Error(1)
}

func (m *MockPaymentGateway) VerifyWebhook(payload []byte, signature string) (*gateway.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.WebhookEvent), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of idempotency.Store
type MockIdempotencyStore struct {
	mock.Mock
}

// Ensure MockIdempotencyStore implements the interface
var _ idempotency.Store = (*MockIdempotencyStore)(nil)

func (m *MockIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockNotifier is a mock implementation of clients.Notifier
type MockNotifier struct {
	mock.Mock
}

// Ensure MockNotifier implements the interface
var _ clients.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) SendInvoiceNotification(ctx context.Context, n *clients.InvoiceNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotifier) SendRefundNotification(ctx context.Context, n *clients.RefundNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
