package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"payments-service/internal/clients"
	"payments-service/internal/events"
	"payments-service/internal/gateway"
	"payments-service/internal/models"
	"payments-service/internal/repository"
)

// TransactionService maintains the payment transaction ledger: creation,
// status transitions, derived refundability fields and tenant-scoped
// deletion.
type TransactionService struct {
	repo     repository.LedgerStore
	gw       gateway.PaymentGateway
	notifier clients.Notifier
	events   *events.Publisher
	logger   *logrus.Entry
}

// NewTransactionService creates a new transaction service
func NewTransactionService(repo repository.LedgerStore, gw gateway.PaymentGateway, notifier clients.Notifier, publisher *events.Publisher, logger *logrus.Logger) *TransactionService {
	return &TransactionService{
		repo:     repo,
		gw:       gw,
		notifier: notifier,
		events:   publisher,
		logger:   logger.WithField("component", "services.transaction"),
	}
}

// CreateTransaction persists a new ledger row. Completed card charges get
// their refund fields derived immediately; invoice-method transactions
// trigger the invoice email as a side effect that never fails the create.
func (s *TransactionService) CreateTransaction(ctx context.Context, req models.CreateTransactionRequest) (*models.PaymentTransaction, error) {
	var tx *models.PaymentTransaction

	switch models.TransactionDirection(req.Direction) {
	case models.DirectionCharge:
		if req.ParentTransactionID != nil {
			return nil, models.NewValidationError("charge_with_parent", "a charge transaction cannot reference a parent transaction")
		}
		tx = models.NewChargeTransaction(req.TenantID, req.ReservationID, req.Amount)
	case models.DirectionRefund:
		if req.ParentTransactionID == nil {
			return nil, models.NewValidationError("refund_without_parent", "a refund transaction requires a parent transaction id")
		}
		parent, err := s.repo.GetTransaction(ctx, *req.ParentTransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("transaction", req.ParentTransactionID.String())
			}
			return nil, fmt.Errorf("failed to load parent transaction: %w", err)
		}
		if !parent.IsCharge() {
			return nil, models.NewValidationError("parent_not_charge", "parent transaction %s is not a charge", parent.ID)
		}
		tx = models.NewRefundTransaction(parent, req.Amount)
	default:
		return nil, models.NewValidationError("invalid_direction", "transaction direction must be %q or %q", models.DirectionCharge, models.DirectionRefund)
	}

	tx.TransactionType = req.TransactionType
	tx.Metadata = req.Metadata
	tx.InvoiceMessage = req.InvoiceMessage
	tx.DueDate = req.DueDate
	if req.PaymentMethod != "" {
		tx.PaymentMethod = req.PaymentMethod
	}
	if req.PaymentStatus != "" {
		tx.PaymentStatus = models.PaymentStatus(req.PaymentStatus)
	}
	if req.PaymentIntentID != "" {
		tx.PaymentIntentID = req.PaymentIntentID
	}
	if req.PaymentMethodID != "" {
		tx.PaymentMethodID = req.PaymentMethodID
	}
	if req.StripePaymentID != "" {
		tx.StripePaymentID = req.StripePaymentID
	}

	s.deriveRefundFields(tx)

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if tx.PaymentMethod == models.PaymentMethodInvoice {
		s.sendInvoiceNotification(tx)
	}

	return tx, nil
}

// deriveRefundFields sets the cached refund aggregates on a freshly written
// charge. Only settled card charges with a usable gateway reference are
// refundable.
func (s *TransactionService) deriveRefundFields(tx *models.PaymentTransaction) {
	if tx.IsCharge() &&
		tx.PaymentStatus.IsTerminalSuccess() &&
		models.IsCardMethod(tx.PaymentMethod) &&
		models.IsUsablePaymentReference(tx.GatewayReference()) {
		tx.AvailableRefundAmount = decimal.NullDecimal{Decimal: tx.Amount, Valid: true}
		tx.IsRefundable = tx.Amount.IsPositive()
		return
	}
	tx.AvailableRefundAmount = decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
	tx.IsRefundable = false
}

// UpdateTransaction applies field updates and runs the status-transition
// logic: completed card charges become refundable, completed refunds fold
// into their parent charge, and invoice transactions returning to pending
// re-send the invoice email.
func (s *TransactionService) UpdateTransaction(ctx context.Context, id uuid.UUID, req models.UpdateTransactionRequest) (*models.PaymentTransaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("transaction", id.String())
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	oldStatus := tx.PaymentStatus

	if req.PaymentMethod != nil {
		tx.PaymentMethod = *req.PaymentMethod
	}
	if req.TransactionType != nil {
		tx.TransactionType = *req.TransactionType
	}
	if req.PaymentIntentID != nil {
		tx.PaymentIntentID = *req.PaymentIntentID
	}
	if req.PaymentMethodID != nil {
		tx.PaymentMethodID = *req.PaymentMethodID
	}
	if req.StripePaymentID != nil {
		tx.StripePaymentID = *req.StripePaymentID
	}
	if req.InvoiceMessage != nil {
		tx.InvoiceMessage = *req.InvoiceMessage
	}
	if req.DueDate != nil {
		tx.DueDate = req.DueDate
	}
	if req.Metadata != nil {
		tx.Metadata = *req.Metadata
	}
	if req.PaymentStatus != nil {
		tx.PaymentStatus = models.PaymentStatus(*req.PaymentStatus)
	}

	enteredTerminal := tx.PaymentStatus.IsTerminalSuccess() && !oldStatus.IsTerminalSuccess()

	if enteredTerminal {
		if tx.IsCharge() && models.IsCardMethod(tx.PaymentMethod) {
			tx.AvailableRefundAmount = decimal.NullDecimal{Decimal: tx.Amount, Valid: true}
			tx.IsRefundable = tx.Amount.IsPositive()
		}
		if tx.IsRefund() && tx.ParentTransactionID != nil {
			// The fold saves the refund's own status together with the
			// parent recompute; a retried PATCH after a failure cannot fold
			// the same refund twice.
			if err := s.applyCompletedRefund(ctx, tx); err != nil {
				return nil, err
			}
			return tx, nil
		}
	}

	if tx.PaymentStatus == models.StatusPending && oldStatus != models.StatusPending &&
		tx.PaymentMethod == models.PaymentMethodInvoice {
		s.sendInvoiceNotification(tx)
	}

	if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	return tx, nil
}

// applyCompletedRefund folds a just-completed refund into its parent charge.
// The recompute runs as one conditional UPDATE keyed by parent id so that
// two refunds completing concurrently cannot lose each other's update, and
// it commits atomically with the refund row's own save. Zero rows means the
// parent is missing, not a charge, or has too little refundable amount left.
func (s *TransactionService) applyCompletedRefund(ctx context.Context, refundTx *models.PaymentTransaction) error {
	now := time.Now()
	rows, err := s.repo.FoldCompletedRefund(ctx, refundTx, now)
	if err != nil {
		return fmt.Errorf("failed to apply refund to parent charge: %w", err)
	}
	if rows == 0 {
		parent, perr := s.repo.GetTransaction(ctx, *refundTx.ParentTransactionID)
		if perr != nil || !parent.IsCharge() {
			return models.NewNotFoundError("parent charge transaction", refundTx.ParentTransactionID.String())
		}
		remaining := parent.Amount
		if parent.RefundedAmount.Valid {
			remaining = remaining.Sub(parent.RefundedAmount.Decimal)
		}
		return models.NewValidationError("refund_exceeds_remaining",
			"refund of %s exceeds the remaining refundable amount %s on charge %s",
			refundTx.Amount.StringFixed(2), remaining.StringFixed(2), parent.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"refund_transaction_id": refundTx.ID,
		"parent_transaction_id": refundTx.ParentTransactionID,
		"amount":                refundTx.Amount,
	}).Info("refund folded into parent charge")

	if s.events != nil {
		s.events.PublishRefundCompleted(ctx, refundTx.TenantID, refundTx.ID.String(), refundTx.ParentTransactionID.String(), refundTx.Amount)
	}
	return nil
}

// DeleteTransaction removes a transaction only when id and tenant both
// match. A mismatch deletes nothing and is not an error, so one tenant can
// never probe another's rows.
func (s *TransactionService) DeleteTransaction(ctx context.Context, tenantID string, id uuid.UUID) error {
	rows, err := s.repo.DeleteTransactionForTenant(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if rows == 0 {
		s.logger.WithFields(logrus.Fields{
			"tenant_id":      tenantID,
			"transaction_id": id,
		}).Info("delete matched no rows")
	}
	return nil
}

// GetTransaction gets a transaction by id
func (s *TransactionService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("transaction", id.String())
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return tx, nil
}

// ListTransactionsByTenant lists a tenant's transactions, newest first
func (s *TransactionService) ListTransactionsByTenant(ctx context.Context, tenantID string) ([]models.PaymentTransaction, error) {
	return s.repo.ListTransactionsByTenant(ctx, tenantID)
}

// ListTransactionsByReservation lists a reservation's transactions, newest
// first, optionally filtered by method and status.
func (s *TransactionService) ListTransactionsByReservation(ctx context.Context, reservationID uuid.UUID, q models.TransactionQuery) ([]models.PaymentTransaction, error) {
	return s.repo.ListTransactionsByReservation(ctx, reservationID, q)
}

// ExecuteCharge creates a charge transaction and confirms it synchronously
// against the gateway: resolve the customer, optionally attach the payment
// method as default, confirm a payment intent carrying the ledger linkage,
// and record the outcome.
func (s *TransactionService) ExecuteCharge(ctx context.Context, req models.ExecuteChargeRequest) (*models.PaymentTransaction, error) {
	customer, err := s.gw.GetOrCreateCustomer(ctx, req.CustomerEmail, req.CustomerName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gateway customer: %w", err)
	}

	if req.SavePaymentMethod {
		if err := s.gw.AttachPaymentMethod(ctx, customer.ID, req.PaymentMethodID); err != nil {
			return nil, fmt.Errorf("failed to attach payment method: %w", err)
		}
	}

	tx := models.NewChargeTransaction(req.TenantID, req.ReservationID, req.Amount)
	tx.PaymentMethod = "card"
	tx.PaymentMethodID = req.PaymentMethodID
	tx.TransactionType = req.TransactionType
	tx.Metadata = req.Metadata
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create charge transaction: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	reservationID := ""
	if req.ReservationID != nil {
		reservationID = req.ReservationID.String()
	}

	result, err := s.gw.CreateAndConfirmPaymentIntent(ctx, &gateway.CreateChargeRequest{
		Amount:          req.Amount,
		Currency:        currency,
		CustomerID:      customer.ID,
		PaymentMethodID: req.PaymentMethodID,
		Description:     req.Description,
		TenantID:        req.TenantID,
		ReservationID:   reservationID,
		TransactionID:   tx.ID.String(),
	})
	if err != nil {
		tx.PaymentStatus = models.StatusFailed
		if uerr := s.repo.UpdateTransaction(ctx, tx); uerr != nil {
			s.logger.WithError(uerr).WithField("transaction_id", tx.ID).Error("failed to record charge failure")
		}
		return nil, fmt.Errorf("failed to confirm payment intent: %w", err)
	}

	tx.PaymentIntentID = result.PaymentIntentID
	tx.StripePaymentID = result.ChargeID
	tx.PaymentStatus = mapIntentStatus(result.Status)
	s.deriveRefundFields(tx)

	if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update charge transaction: %w", err)
	}

	if s.events != nil && tx.PaymentStatus.IsTerminalSuccess() {
		s.events.PublishChargeSucceeded(ctx, tx.TenantID, tx.ID.String(), tx.PaymentIntentID, tx.Amount)
	}

	return tx, nil
}

// RefreshChargeStatus re-reads a charge's payment intent status from the
// gateway and runs the normal transition logic on it.
func (s *TransactionService) RefreshChargeStatus(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.PaymentIntentID == "" {
		return nil, models.NewValidationError("missing_payment_intent", "transaction %s has no payment intent to refresh from", id)
	}

	status, err := s.gw.GetPaymentIntentStatus(ctx, tx.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment intent status: %w", err)
	}

	mapped := string(mapIntentStatus(status))
	return s.UpdateTransaction(ctx, id, models.UpdateTransactionRequest{PaymentStatus: &mapped})
}

// mapIntentStatus maps gateway payment intent statuses into ledger statuses.
// Unknown gateway states stay pending rather than guessing a terminal state.
func mapIntentStatus(status string) models.PaymentStatus {
	switch status {
	case "succeeded":
		return models.StatusCompleted
	case "processing":
		return models.StatusProcessing
	case "canceled", "failed":
		return models.StatusFailed
	default:
		return models.StatusPending
	}
}

// sendInvoiceNotification emails the invoice for this transaction. The send
// is asynchronous and its failure is logged, never propagated: notification
// delivery must not fail ledger writes.
func (s *TransactionService) sendInvoiceNotification(tx *models.PaymentTransaction) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		recipient := ""
		if tx.ReservationID != nil {
			if reservation, err := s.repo.GetReservation(ctx, *tx.ReservationID); err == nil {
				recipient = reservation.CustomerEmail
			}
		}

		notification := clients.BuildInvoiceNotification(tx, recipient)
		if err := s.notifier.SendInvoiceNotification(ctx, notification); err != nil {
			s.logger.WithError(err).WithField("transaction_id", tx.ID).Warn("invoice notification failed")
		}
	}()
}
