package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"payments-service/internal/models"
)

// LedgerRepository handles transaction and refund persistence
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreateTransaction creates a new payment transaction
func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// GetTransaction gets a payment transaction by ID
func (r *LedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransactionByGatewayReference finds a transaction whose payment intent
// id or gateway payment id matches the given reference.
func (r *LedgerRepository) GetTransactionByGatewayReference(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ? OR stripe_payment_id = ?", ref, ref).
		Order("created_at DESC").
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateTransaction persists changes to a payment transaction
func (r *LedgerRepository) UpdateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	tx.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(tx).Error
}

// DeleteTransactionForTenant deletes a transaction only when both id and
// tenant match. A tenant mismatch affects zero rows and is reported as such,
// not as an error, so existence never leaks across tenants.
func (r *LedgerRepository) DeleteTransactionForTenant(ctx context.Context, tenantID string, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&models.PaymentTransaction{})
	return res.RowsAffected, res.Error
}

// ListTransactionsByTenant lists all transactions for a tenant, newest first
func (r *LedgerRepository) ListTransactionsByTenant(ctx context.Context, tenantID string) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// ListTransactionsByReservation lists transactions for a reservation,
// optionally filtered by payment method and status, newest first.
func (r *LedgerRepository) ListTransactionsByReservation(ctx context.Context, reservationID uuid.UUID, q models.TransactionQuery) ([]models.PaymentTransaction, error) {
	query := r.db.WithContext(ctx).Where("reservation_id = ?", reservationID)
	if q.PaymentMethod != "" {
		query = query.Where("payment_method = ?", q.PaymentMethod)
	}
	if q.PaymentStatus != "" {
		query = query.Where("payment_status = ?", q.PaymentStatus)
	}

	var txs []models.PaymentTransaction
	err := query.Order("created_at DESC").Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// ListCompletedChildRefunds lists the completed refund transactions against a
// charge, newest first.
func (r *LedgerRepository) ListCompletedChildRefunds(ctx context.Context, parentID uuid.UUID) ([]models.PaymentTransaction, error) {
	var refunds []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("parent_transaction_id = ? AND transaction_direction = ? AND payment_status IN ?",
			parentID, models.DirectionRefund, []models.PaymentStatus{models.StatusCompleted, models.StatusPaid}).
		Order("created_at DESC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

// errFoldRejected forces a rollback when the parent guard matches no rows.
var errFoldRejected = errors.New("refund fold rejected")

// FoldCompletedRefund saves a completed refund transaction and folds its
// amount into the parent charge within one database transaction, so the
// refund's own status and the parent recompute commit or roll back together.
// The parent recompute is a single conditional UPDATE keyed by parent id:
// two refunds completing concurrently against the same charge both land
// because the arithmetic runs in the database, not in a read-modify-write.
// The WHERE guard keeps the folded total from ever exceeding the charge
// amount; a guard miss rolls everything back and reports zero rows.
func (r *LedgerRepository) FoldCompletedRefund(ctx context.Context, refundTx *models.PaymentTransaction, at time.Time) (int64, error) {
	var rows int64
	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		refundTx.UpdatedAt = at
		if err := db.Save(refundTx).Error; err != nil {
			return err
		}
		res := db.Model(&models.PaymentTransaction{}).
			Where("id = ? AND transaction_direction = ? AND amount - COALESCE(refunded_amount, 0) - ? >= 0",
				refundTx.ParentTransactionID, models.DirectionCharge, refundTx.Amount).
			Updates(map[string]interface{}{
				"refunded_amount":         gorm.Expr("COALESCE(refunded_amount, 0) + ?", refundTx.Amount),
				"available_refund_amount": gorm.Expr("amount - (COALESCE(refunded_amount, 0) + ?)", refundTx.Amount),
				"is_refundable":           gorm.Expr("(amount - (COALESCE(refunded_amount, 0) + ?)) > 0", refundTx.Amount),
				"last_refund_date":        at,
				"updated_at":              at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errFoldRejected
		}
		rows = res.RowsAffected
		return nil
	})
	if errors.Is(err, errFoldRejected) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// OverwriteRefundFields replaces a charge's cached refund aggregates with
// values rebuilt from the gateway's refund history.
func (r *LedgerRepository) OverwriteRefundFields(ctx context.Context, id uuid.UUID, refunded, available decimal.Decimal, refundable bool) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND transaction_direction = ?", id, models.DirectionCharge).
		Updates(map[string]interface{}{
			"refunded_amount":         refunded,
			"available_refund_amount": available,
			"is_refundable":           refundable,
			"updated_at":              time.Now(),
		}).Error
}

// CreateRefund creates a refund record
func (r *LedgerRepository) CreateRefund(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// ListRefundsByReservation lists refund records for a reservation, newest first
func (r *LedgerRepository) ListRefundsByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at DESC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

// GetReservation gets a reservation by ID
func (r *LedgerRepository) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetReservationByPaymentIntent gets a reservation by its payment intent reference
func (r *LedgerRepository) GetReservationByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// DecrementReservationTotal applies a compensating balance update for a
// refund. Repeated partial refunds decrement repeatedly; this is not a
// recomputation from line items.
func (r *LedgerRepository) DecrementReservationTotal(ctx context.Context, reservationID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", reservationID).
		UpdateColumn("total_price", gorm.Expr("total_price - ?", amount)).Error
}

// CreateWebhookEvent creates a webhook event record
func (r *LedgerRepository) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// GetWebhookEvent gets a webhook event by gateway event id
func (r *LedgerRepository) GetWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateWebhookEvent updates a webhook event record
func (r *LedgerRepository) UpdateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}
