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
	"payments-service/internal/idempotency"
	"payments-service/internal/models"
	"payments-service/internal/repository"
)

// Rejection reason codes returned by the refundability pipeline
const (
	ReasonTransactionNotFound = "transaction_not_found"
	ReasonNonCardMethod       = "non_card_method"
	ReasonNotACharge          = "not_a_charge"
	ReasonMissingPaymentID    = "missing_payment_id"
	ReasonRefundsExhausted    = "refunds_exhausted"
	ReasonInvalidAmount       = "invalid_amount"
	ReasonAmountExceedsLimit  = "amount_exceeds_available"
	ReasonDuplicateRequest    = "duplicate_request"
)

// DefaultIdempotencyTTL bounds how long a refund submission key stays
// claimed when no TTL is configured.
const DefaultIdempotencyTTL = 24 * time.Hour

// RefundService validates refund eligibility against the local ledger and
// executes refunds against the gateway, whose own refund history is
// authoritative.
type RefundService struct {
	repo        repository.LedgerStore
	gw          gateway.PaymentGateway
	idempotency idempotency.Store
	idemTTL     time.Duration
	notifier    clients.Notifier
	events      *events.Publisher
	logger      *logrus.Entry
}

// NewRefundService creates a new refund service. A zero idemTTL falls back
// to DefaultIdempotencyTTL.
func NewRefundService(repo repository.LedgerStore, gw gateway.PaymentGateway, idem idempotency.Store, idemTTL time.Duration, notifier clients.Notifier, publisher *events.Publisher, logger *logrus.Logger) *RefundService {
	if idemTTL <= 0 {
		idemTTL = DefaultIdempotencyTTL
	}
	return &RefundService{
		repo:        repo,
		gw:          gw,
		idempotency: idem,
		idemTTL:     idemTTL,
		notifier:    notifier,
		events:      publisher,
		logger:      logger.WithField("component", "services.refund"),
	}
}

// ValidateRefundability runs the eligibility pipeline for a charge. It is
// pure with respect to the ledger: no derived field is written, so calling
// it twice with no intervening writes yields identical results. Rejections
// are structured results, not errors; errors are reserved for storage
// failures.
func (s *RefundService) ValidateRefundability(ctx context.Context, transactionID uuid.UUID, requested *decimal.Decimal) (*models.RefundabilityResponse, error) {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reject(ReasonTransactionNotFound, "transaction %s does not exist", transactionID), nil
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	if !models.IsCardMethod(tx.PaymentMethod) {
		return rejectWithTx(tx, ReasonNonCardMethod, "payment method %q is not refundable via the payment gateway", tx.PaymentMethod), nil
	}

	if !tx.IsCharge() {
		return rejectWithTx(tx, ReasonNotACharge, "transaction %s is a refund; refunds cannot themselves be refunded", tx.ID), nil
	}

	if !models.IsUsablePaymentReference(tx.GatewayReference()) {
		return rejectWithTx(tx, ReasonMissingPaymentID, "transaction %s carries no valid payment id", tx.ID), nil
	}

	completedRefunds, err := s.repo.ListCompletedChildRefunds(ctx, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load child refunds: %w", err)
	}

	// Cached aggregates are a read optimization; when absent they are
	// rederived from the completed child refunds.
	refunded := decimal.Zero
	if tx.RefundedAmount.Valid {
		refunded = tx.RefundedAmount.Decimal
	} else {
		for _, r := range completedRefunds {
			refunded = refunded.Add(r.Amount)
		}
	}

	available := decimal.Zero
	if tx.AvailableRefundAmount.Valid {
		available = tx.AvailableRefundAmount.Decimal
	} else {
		available = decimal.Max(tx.Amount.Sub(refunded), decimal.Zero)
	}

	resp := &models.RefundabilityResponse{
		OriginalAmount:   tx.Amount,
		RefundedAmount:   refunded,
		AvailableAmount:  available,
		Transaction:      tx,
		CompletedRefunds: completedRefunds,
	}

	if !available.IsPositive() {
		resp.ReasonCode = ReasonRefundsExhausted
		resp.Reason = fmt.Sprintf("transaction %s has no refundable amount remaining", tx.ID)
		return resp, nil
	}

	if requested != nil {
		if !requested.IsPositive() {
			resp.ReasonCode = ReasonInvalidAmount
			resp.Reason = fmt.Sprintf("requested refund amount %s must be greater than zero", requested.StringFixed(2))
			return resp, nil
		}
		if requested.GreaterThan(available) {
			resp.ReasonCode = ReasonAmountExceedsLimit
			resp.Reason = fmt.Sprintf("requested refund amount %s exceeds the available refund amount %s", requested.StringFixed(2), available.StringFixed(2))
			return resp, nil
		}
	}

	resp.Refundable = true
	return resp, nil
}

func reject(code, format string, args ...interface{}) *models.RefundabilityResponse {
	return &models.RefundabilityResponse{
		ReasonCode: code,
		Reason:     fmt.Sprintf(format, args...),
	}
}

func rejectWithTx(tx *models.PaymentTransaction, code, format string, args ...interface{}) *models.RefundabilityResponse {
	resp := reject(code, format, args...)
	resp.Transaction = tx
	resp.OriginalAmount = tx.Amount
	return resp
}

// CreateRefund executes a refund against the gateway and records the local
// bookkeeping: a Refund row and a compensating decrement of the owning
// reservation's total price. The gateway's own refund history is checked
// first because it is authoritative for what has actually been executed,
// regardless of local cache state.
func (s *RefundService) CreateRefund(ctx context.Context, req models.CreateRefundRequest) (*models.RefundResponse, error) {
	// Step 1: resolve the charge to refund against
	chargeID := req.ChargeReference
	if chargeID == "" {
		intent, err := s.gw.GetPaymentIntent(ctx, req.PaymentReference)
		if err != nil {
			return nil, s.gatewayFailure(err, "retrieve payment intent", req.PaymentReference)
		}
		charges, err := s.gw.ListCharges(ctx, intent.ID)
		if err != nil {
			return nil, s.gatewayFailure(err, "list charges", intent.ID)
		}
		if len(charges) == 0 {
			return nil, models.NewValidationError("no_charge", "payment intent %s has no charges to refund", req.PaymentReference)
		}
		chargeID = mostRecentCharge(charges).ID
	}

	// Step 2: independent availability check against gateway ground truth
	charge, err := s.gw.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, s.gatewayFailure(err, "retrieve charge", chargeID)
	}
	existing, err := s.gw.ListRefunds(ctx, chargeID)
	if err != nil {
		return nil, s.gatewayFailure(err, "list refunds", chargeID)
	}

	alreadyRefunded := decimal.Zero
	for _, r := range existing {
		if refundCountsTowardTotal(r.Status) {
			alreadyRefunded = alreadyRefunded.Add(r.Amount)
		}
	}
	availableForRefund := charge.Amount.Sub(alreadyRefunded)

	amount := availableForRefund
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, models.NewValidationError(ReasonInvalidAmount, "refund amount %s must be greater than zero", req.Amount.StringFixed(2))
		}
		if req.Amount.GreaterThan(availableForRefund) {
			return nil, models.NewValidationError(ReasonAmountExceedsLimit,
				"refund amount %s exceeds the gateway-reported available amount %s",
				req.Amount.StringFixed(2), availableForRefund.StringFixed(2))
		}
		amount = *req.Amount
	}
	if !amount.IsPositive() {
		return nil, models.NewValidationError(ReasonRefundsExhausted, "charge %s has no refundable amount remaining", chargeID)
	}

	// Step 3: resolve the owning reservation
	reservation, err := s.resolveReservation(ctx, req.PaymentReference)
	if err != nil {
		return nil, err
	}

	// Claim the idempotency key before touching the gateway so an identical
	// resubmission cannot execute the refund twice.
	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = fmt.Sprintf("%s:%s", req.PaymentReference, amount.StringFixed(2))
	}
	if s.idempotency != nil {
		claimed, err := s.idempotency.Claim(ctx, idemKey, s.idemTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check refund idempotency: %w", err)
		}
		if !claimed {
			return nil, models.NewValidationError(ReasonDuplicateRequest, "an identical refund request was already submitted for %s", req.PaymentReference)
		}
	}

	// Step 4: execute the refund
	result, err := s.gw.CreateRefund(ctx, &gateway.RefundRequest{
		ChargeID:           chargeID,
		Amount:             amount,
		ConnectedAccountID: req.ConnectedAccountID,
		IdempotencyKey:     idemKey,
		Metadata: map[string]string{
			"reservation_id": reservation.ID.String(),
		},
	})
	if err != nil {
		if s.idempotency != nil {
			if rerr := s.idempotency.Release(ctx, idemKey); rerr != nil {
				s.logger.WithError(rerr).Warn("failed to release idempotency key after gateway failure")
			}
		}
		return nil, s.gatewayFailure(err, "create refund", chargeID)
	}

	// Steps 5-6: local bookkeeping. If these fail after the gateway refund
	// succeeded the ledger has drifted from gateway truth; the repair
	// routine rebuilds it from the gateway's refund list.
	refund := &models.Refund{
		ReservationID:      reservation.ID,
		PaymentIntentID:    req.PaymentReference,
		Amount:             result.Amount,
		Status:             result.Status,
		ConnectedAccountID: req.ConnectedAccountID,
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"gateway_refund_id": result.GatewayRefundID,
			"reservation_id":    reservation.ID,
		}).Error("refund executed at gateway but local record failed; ledger requires repair")
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	if err := s.repo.DecrementReservationTotal(ctx, reservation.ID, result.Amount); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"gateway_refund_id": result.GatewayRefundID,
			"reservation_id":    reservation.ID,
		}).Error("refund recorded but reservation balance update failed")
		return nil, fmt.Errorf("failed to update reservation balance: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"gateway_refund_id": result.GatewayRefundID,
		"reservation_id":    reservation.ID,
		"amount":            result.Amount,
	}).Info("refund executed")

	if s.events != nil {
		s.events.PublishRefundExecuted(ctx, reservation.TenantID, result.GatewayRefundID, reservation.ID.String(), result.Amount)
	}
	s.sendRefundNotification(reservation, result.Amount, req.PaymentReference)

	return &models.RefundResponse{
		RefundID:        refund.ID.String(),
		GatewayRefundID: result.GatewayRefundID,
		ReservationID:   reservation.ID.String(),
		Amount:          result.Amount,
		Status:          result.Status,
		CreatedAt:       refund.CreatedAt.Format(time.RFC3339),
	}, nil
}

// resolveReservation finds the reservation a payment reference belongs to:
// first directly by payment-intent reference, then through a ledger
// transaction matching the reference.
func (s *RefundService) resolveReservation(ctx context.Context, paymentReference string) (*models.Reservation, error) {
	reservation, err := s.repo.GetReservationByPaymentIntent(ctx, paymentReference)
	if err == nil {
		return reservation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up reservation: %w", err)
	}

	tx, err := s.repo.GetTransactionByGatewayReference(ctx, paymentReference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("reservation", paymentReference)
		}
		return nil, fmt.Errorf("failed to look up transaction by payment reference: %w", err)
	}
	if tx.ReservationID == nil {
		return nil, models.NewNotFoundError("reservation", paymentReference)
	}

	reservation, err = s.repo.GetReservation(ctx, *tx.ReservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("reservation", tx.ReservationID.String())
		}
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	return reservation, nil
}

// ListRefunds returns the executed refunds recorded for a reservation.
func (s *RefundService) ListRefunds(ctx context.Context, reservationID uuid.UUID) ([]models.Refund, error) {
	refunds, err := s.repo.ListRefundsByReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

// RepairRefundFields rebuilds a charge's cached refund aggregates purely
// from the gateway's refund list. This is the only sanctioned way to heal
// drift after a partial failure; it is never invoked automatically.
func (s *RefundService) RepairRefundFields(ctx context.Context, transactionID uuid.UUID) (*models.RepairResponse, error) {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("transaction", transactionID.String())
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if !tx.IsCharge() {
		return nil, models.NewValidationError(ReasonNotACharge, "transaction %s is not a charge", tx.ID)
	}
	if !models.IsUsablePaymentReference(tx.GatewayReference()) {
		return nil, models.NewValidationError(ReasonMissingPaymentID, "transaction %s carries no valid payment id", tx.ID)
	}

	chargeID, err := s.resolveChargeID(ctx, tx)
	if err != nil {
		return nil, err
	}

	refunds, err := s.gw.ListRefunds(ctx, chargeID)
	if err != nil {
		return nil, s.gatewayFailure(err, "list refunds", chargeID)
	}

	refunded := decimal.Zero
	for _, r := range refunds {
		if refundCountsTowardTotal(r.Status) {
			refunded = refunded.Add(r.Amount)
		}
	}
	available := decimal.Max(tx.Amount.Sub(refunded), decimal.Zero)
	refundable := available.IsPositive()

	drifted := !tx.RefundedAmount.Valid || !tx.RefundedAmount.Decimal.Equal(refunded) ||
		!tx.AvailableRefundAmount.Valid || !tx.AvailableRefundAmount.Decimal.Equal(available)
	if drifted {
		recErr := &models.ReconciliationError{
			TransactionID: tx.ID.String(),
			Detail:        fmt.Sprintf("ledger refunded=%s, gateway refunded=%s", tx.RefundedAmount.Decimal, refunded),
		}
		s.logger.WithFields(logrus.Fields{
			"transaction_id":   tx.ID,
			"ledger_refunded":  tx.RefundedAmount,
			"gateway_refunded": refunded,
		}).WithError(recErr).Warn("ledger drifted from gateway refund history; rebuilding from gateway truth")
	}

	if err := s.repo.OverwriteRefundFields(ctx, tx.ID, refunded, available, refundable); err != nil {
		return nil, fmt.Errorf("failed to overwrite refund fields: %w", err)
	}

	return &models.RepairResponse{
		TransactionID:         tx.ID.String(),
		RefundedAmount:        refunded,
		AvailableRefundAmount: available,
		IsRefundable:          refundable,
		GatewayRefundCount:    len(refunds),
		Drifted:               drifted,
	}, nil
}

func (s *RefundService) resolveChargeID(ctx context.Context, tx *models.PaymentTransaction) (string, error) {
	if tx.StripePaymentID != "" {
		return tx.StripePaymentID, nil
	}

	charges, err := s.gw.ListCharges(ctx, tx.PaymentIntentID)
	if err != nil {
		return "", s.gatewayFailure(err, "list charges", tx.PaymentIntentID)
	}
	if len(charges) == 0 {
		return "", models.NewValidationError("no_charge", "payment intent %s has no charges", tx.PaymentIntentID)
	}
	return mostRecentCharge(charges).ID, nil
}

func mostRecentCharge(charges []gateway.Charge) gateway.Charge {
	latest := charges[0]
	for _, c := range charges[1:] {
		if c.Created > latest.Created {
			latest = c
		}
	}
	return latest
}

// gatewayFailure logs the internal gateway detail and returns the wrapped
// error; handlers surface it generically without leaking processor
// internals.
// refundCountsTowardTotal reports whether a gateway refund reserves part of
// the charge's amount. Pending refunds count: the gateway has accepted them,
// so the amount is no longer available to another refund. Availability
// checks and the repair routine must agree on this filter.
func refundCountsTowardTotal(status string) bool {
	return status != "failed" && status != "canceled"
}

func (s *RefundService) gatewayFailure(err error, op, ref string) error {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"operation": op,
		"reference": ref,
	}).Error("gateway call failed")
	return fmt.Errorf("gateway %s failed: %w", op, err)
}

// sendRefundNotification emails the refund confirmation asynchronously;
// delivery failure never fails the refund.
func (s *RefundService) sendRefundNotification(reservation *models.Reservation, amount decimal.Decimal, paymentReference string) {
	if s.notifier == nil || reservation.CustomerEmail == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		err := s.notifier.SendRefundNotification(ctx, &clients.RefundNotification{
			TenantID:       reservation.TenantID,
			ReservationID:  reservation.ID.String(),
			RecipientEmail: reservation.CustomerEmail,
			Amount:         amount,
			PaymentIntent:  paymentReference,
		})
		if err != nil {
			s.logger.WithError(err).WithField("reservation_id", reservation.ID).Warn("refund notification failed")
		}
	}()
}
