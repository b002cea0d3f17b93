package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"payments-service/internal/gateway"
	"payments-service/internal/models"
)

func newRefundService(repo *MockLedgerStore, gw *MockPaymentGateway, idem *MockIdempotencyStore) *RefundService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	if idem == nil {
		return NewRefundService(repo, gw, nil, 0, nil, nil, logger)
	}
	return NewRefundService(repo, gw, idem, 0, nil, nil, logger)
}

func nullDecimal(f float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(f), Valid: true}
}

func completedCardCharge(amount float64) *models.PaymentTransaction {
	return &models.PaymentTransaction{
		ID:              uuid.New(),
		TenantID:        "tenant-1",
		Direction:       models.DirectionCharge,
		PaymentMethod:   "card",
		PaymentStatus:   models.StatusCompleted,
		Amount:          decimal.NewFromFloat(amount),
		PaymentIntentID: "pi_abc123",
	}
}

func TestValidateRefundability_MissingTransaction(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	id := uuid.New()
	repo.On("GetTransaction", mock.Anything, id).Return(nil, gorm.ErrRecordNotFound)

	result, err := svc.ValidateRefundability(context.Background(), id, nil)

	assert.NoError(t, err)
	assert.False(t, result.Refundable)
	assert.Equal(t, ReasonTransactionNotFound, result.ReasonCode)
}

func TestValidateRefundability_InvoiceMethodRejected(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	tx := completedCardCharge(250.00)
	tx.PaymentMethod = models.PaymentMethodInvoice
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)

	result, err := svc.ValidateRefundability(context.Background(), tx.ID, nil)

	assert.NoError(t, err)
	assert.False(t, result.Refundable)
	assert.Equal(t, ReasonNonCardMethod, result.ReasonCode)
	repo.AssertNotCalled(t, "ListCompletedChildRefunds", mock.Anything, mock.Anything)
}

func TestValidateRefundability_RefundRowRejected(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	parentID := uuid.New()
	tx := &models.PaymentTransaction{
		ID:                  uuid.New(),
		Direction:           models.DirectionRefund,
		PaymentMethod:       "card",
		Amount:              decimal.NewFromFloat(40.00),
		ParentTransactionID: &parentID,
		PaymentIntentID:     "pi_abc123",
	}
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)

	result, err := svc.ValidateRefundability(context.Background(), tx.ID, nil)

	assert.NoError(t, err)
	assert.False(t, result.Refundable)
	assert.Equal(t, ReasonNotACharge, result.ReasonCode)
}

func TestValidateRefundability_SetupIntentReferenceRejected(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	tx := completedCardCharge(100.00)
	tx.PaymentIntentID = "seti_setup_only"
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)

	result, err := svc.ValidateRefundability(context.Background(), tx.ID, nil)

	assert.NoError(t, err)
	assert.False(t, result.Refundable)
	assert.Equal(t, ReasonMissingPaymentID, result.ReasonCode)
}

func TestValidateRefundability_FullyRefundableCharge(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	tx := completedCardCharge(100.00)
	tx.AvailableRefundAmount = nullDecimal(100.00)
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	repo.On("ListCompletedChildRefunds", mock.Anything, tx.ID).Return([]models.PaymentTransaction{}, nil)

	result, err := svc.ValidateRefundability(context.Background(), tx.ID, nil)

	assert.NoError(t, err)
	assert.True(t, result.Refundable)
	assert.True(t, result.AvailableAmount.Equal(decimal.NewFromFloat(100.00)))
	assert.True(t, result.RefundedAmount.IsZero())
}

func TestValidateRefundability_RequestAboveAvailableCitesCeiling(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	tx := completedCardCharge(100.00)
	tx.RefundedAmount = nullDecimal(40.00)
	tx.AvailableRefundAmount = nullDecimal(60.00)
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	repo.On("ListCompletedChildRefunds", mock.Anything, tx.ID).Return([]models.PaymentTransaction{}, nil)

	requested := decimal.NewFromFloat(61.00)
	result, err := svc.ValidateRefundability(context.Background(), tx.ID, &requested)

	assert.NoError(t, err)
	assert.False(t, result.Refundable)
	assert.Equal(t, ReasonAmountExceedsLimit, result.ReasonCode)
	assert.Contains(t, result.Reason, "60.00")
	assert.Contains(t, result.Reason, "61.00")
}

func TestValidateRefundability_RequestAtCeilingAllowed(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	tx := completedCardCharge(100.00)
	tx.RefundedAmount = nullDecimal(40.00)
	tx.AvailableRefundAmount = nullDecimal(60.00)
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	repo.On("ListCompletedChildRefunds", mock.Anything, tx.ID).Return([]models.PaymentTransaction{}, nil)

	requested := decimal.NewFromFloat(60.00)
	result, err := svc.ValidateRefundability(context.Background(), tx.ID, &requested)

	assert.NoError(t, err)
	assert.True(t, result.Refundable)
}

func TestValidateRefundability_ExhaustedCharge(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	tx := completedCardCharge(100.00)
	tx.RefundedAmount = nullDecimal(100.00)
	tx.AvailableRefundAmount = nullDecimal(0)
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	repo.On("ListCompletedChildRefunds", mock.Anything, tx.ID).Return([]models.PaymentTransaction{}, nil)

	result, err := svc.ValidateRefundability(context.Background(), tx.ID, nil)

	assert.NoError(t, err)
	assert.False(t, result.Refundable)
	assert.Equal(t, ReasonRefundsExhausted, result.ReasonCode)
}

func TestValidateRefundability_RederivesFromChildrenWhenCacheAbsent(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	tx := completedCardCharge(100.00)
	children := []models.PaymentTransaction{
		{Direction: models.DirectionRefund, PaymentStatus: models.StatusCompleted, Amount: decimal.NewFromFloat(25.00)},
		{Direction: models.DirectionRefund, PaymentStatus: models.StatusCompleted, Amount: decimal.NewFromFloat(15.00)},
	}
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	repo.On("ListCompletedChildRefunds", mock.Anything, tx.ID).Return(children, nil)

	result, err := svc.ValidateRefundability(context.Background(), tx.ID, nil)

	assert.NoError(t, err)
	assert.True(t, result.Refundable)
	assert.True(t, result.RefundedAmount.Equal(decimal.NewFromFloat(40.00)))
	assert.True(t, result.AvailableAmount.Equal(decimal.NewFromFloat(60.00)))
}

func TestValidateRefundability_IsIdempotent(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	tx := completedCardCharge(100.00)
	tx.RefundedAmount = nullDecimal(40.00)
	tx.AvailableRefundAmount = nullDecimal(60.00)
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	repo.On("ListCompletedChildRefunds", mock.Anything, tx.ID).Return([]models.PaymentTransaction{}, nil)

	first, err := svc.ValidateRefundability(context.Background(), tx.ID, nil)
	assert.NoError(t, err)
	second, err := svc.ValidateRefundability(context.Background(), tx.ID, nil)
	assert.NoError(t, err)

	assert.Equal(t, first.Refundable, second.Refundable)
	assert.True(t, first.AvailableAmount.Equal(second.AvailableAmount))
	assert.True(t, first.RefundedAmount.Equal(second.RefundedAmount))
}

func TestCreateRefund_RejectsAmountAboveGatewayTruth(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	svc := newRefundService(repo, gw, nil)

	gw.On("GetCharge", mock.Anything, "ch_123").Return(&gateway.Charge{
		ID:     "ch_123",
		Amount: decimal.NewFromFloat(100.00),
	}, nil)
	gw.On("ListRefunds", mock.Anything, "ch_123").Return([]gateway.RefundRecord{
		{ID: "re_1", Amount: decimal.NewFromFloat(40.00), Status: "succeeded"},
	}, nil)

	amount := decimal.NewFromFloat(61.00)
	_, err := svc.CreateRefund(context.Background(), models.CreateRefundRequest{
		PaymentReference: "pi_abc123",
		ChargeReference:  "ch_123",
		Amount:           &amount,
	})

	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, ReasonAmountExceedsLimit, validationErr.Code)
	assert.Contains(t, validationErr.Message, "61.00")
	assert.Contains(t, validationErr.Message, "60.00")
	gw.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
}

func TestCreateRefund_ExecutesAndRecords(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	idem := new(MockIdempotencyStore)
	svc := newRefundService(repo, gw, idem)

	reservationID := uuid.New()
	reservation := &models.Reservation{
		ID:              reservationID,
		TenantID:        "tenant-1",
		TotalPrice:      decimal.NewFromFloat(100.00),
		PaymentIntentID: "pi_abc123",
	}

	gw.On("GetCharge", mock.Anything, "ch_123").Return(&gateway.Charge{
		ID:     "ch_123",
		Amount: decimal.NewFromFloat(100.00),
	}, nil)
	gw.On("ListRefunds", mock.Anything, "ch_123").Return([]gateway.RefundRecord{}, nil)
	gw.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req *gateway.RefundRequest) bool {
		return req.ChargeID == "ch_123" && req.Amount.Equal(decimal.NewFromFloat(40.00))
	})).Return(&gateway.RefundResult{
		GatewayRefundID: "re_new",
		Status:          "succeeded",
		Amount:          decimal.NewFromFloat(40.00),
	}, nil)
	repo.On("GetReservationByPaymentIntent", mock.Anything, "pi_abc123").Return(reservation, nil)
	repo.On("CreateRefund", mock.Anything, mock.AnythingOfType("*models.Refund")).Return(nil)
	repo.On("DecrementReservationTotal", mock.Anything, reservationID, decimal.NewFromFloat(40.00)).Return(nil)
	idem.On("Claim", mock.Anything, "key-1", DefaultIdempotencyTTL).Return(true, nil)

	amount := decimal.NewFromFloat(40.00)
	result, err := svc.CreateRefund(context.Background(), models.CreateRefundRequest{
		PaymentReference: "pi_abc123",
		ChargeReference:  "ch_123",
		Amount:           &amount,
		IdempotencyKey:   "key-1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "re_new", result.GatewayRefundID)
	assert.True(t, result.Amount.Equal(decimal.NewFromFloat(40.00)))
	repo.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestCreateRefund_DuplicateRequestRejected(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	idem := new(MockIdempotencyStore)
	svc := newRefundService(repo, gw, idem)

	reservation := &models.Reservation{ID: uuid.New(), PaymentIntentID: "pi_abc123"}

	gw.On("GetCharge", mock.Anything, "ch_123").Return(&gateway.Charge{
		ID:     "ch_123",
		Amount: decimal.NewFromFloat(100.00),
	}, nil)
	gw.On("ListRefunds", mock.Anything, "ch_123").Return([]gateway.RefundRecord{}, nil)
	repo.On("GetReservationByPaymentIntent", mock.Anything, "pi_abc123").Return(reservation, nil)
	idem.On("Claim", mock.Anything, "key-1", DefaultIdempotencyTTL).Return(false, nil)

	amount := decimal.NewFromFloat(40.00)
	_, err := svc.CreateRefund(context.Background(), models.CreateRefundRequest{
		PaymentReference: "pi_abc123",
		ChargeReference:  "ch_123",
		Amount:           &amount,
		IdempotencyKey:   "key-1",
	})

	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, ReasonDuplicateRequest, validationErr.Code)
	gw.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
}

func TestCreateRefund_ReleasesKeyWhenGatewayFails(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	idem := new(MockIdempotencyStore)
	svc := newRefundService(repo, gw, idem)

	reservation := &models.Reservation{ID: uuid.New(), PaymentIntentID: "pi_abc123"}

	gw.On("GetCharge", mock.Anything, "ch_123").Return(&gateway.Charge{
		ID:     "ch_123",
		Amount: decimal.NewFromFloat(100.00),
	}, nil)
	gw.On("ListRefunds", mock.Anything, "ch_123").Return([]gateway.RefundRecord{}, nil)
	gw.On("CreateRefund", mock.Anything, mock.Anything).
		Return(nil, gateway.NewGatewayError("lock_timeout", "try again", true))
	repo.On("GetReservationByPaymentIntent", mock.Anything, "pi_abc123").Return(reservation, nil)
	idem.On("Claim", mock.Anything, "key-1", DefaultIdempotencyTTL).Return(true, nil)
	idem.On("Release", mock.Anything, "key-1").Return(nil)

	amount := decimal.NewFromFloat(40.00)
	_, err := svc.CreateRefund(context.Background(), models.CreateRefundRequest{
		PaymentReference: "pi_abc123",
		ChargeReference:  "ch_123",
		Amount:           &amount,
		IdempotencyKey:   "key-1",
	})

	assert.Error(t, err)
	idem.AssertCalled(t, "Release", mock.Anything, "key-1")
	repo.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
}

func TestCreateRefund_ResolvesChargeFromIntent(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	svc := newRefundService(repo, gw, nil)

	reservationID := uuid.New()
	reservation := &models.Reservation{ID: reservationID, PaymentIntentID: "pi_abc123"}

	gw.On("GetPaymentIntent", mock.Anything, "pi_abc123").Return(&gateway.PaymentIntent{ID: "pi_abc123"}, nil)
	gw.On("ListCharges", mock.Anything, "pi_abc123").Return([]gateway.Charge{
		{ID: "ch_old", Amount: decimal.NewFromFloat(100.00), Created: 100},
		{ID: "ch_new", Amount: decimal.NewFromFloat(100.00), Created: 200},
	}, nil)
	gw.On("GetCharge", mock.Anything, "ch_new").Return(&gateway.Charge{
		ID:     "ch_new",
		Amount: decimal.NewFromFloat(100.00),
	}, nil)
	gw.On("ListRefunds", mock.Anything, "ch_new").Return([]gateway.RefundRecord{}, nil)
	gw.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req *gateway.RefundRequest) bool {
		return req.ChargeID == "ch_new"
	})).Return(&gateway.RefundResult{
		GatewayRefundID: "re_new",
		Status:          "succeeded",
		Amount:          decimal.NewFromFloat(100.00),
	}, nil)
	repo.On("GetReservationByPaymentIntent", mock.Anything, "pi_abc123").Return(reservation, nil)
	repo.On("CreateRefund", mock.Anything, mock.AnythingOfType("*models.Refund")).Return(nil)
	repo.On("DecrementReservationTotal", mock.Anything, reservationID, decimal.NewFromFloat(100.00)).Return(nil)

	result, err := svc.CreateRefund(context.Background(), models.CreateRefundRequest{
		PaymentReference: "pi_abc123",
	})

	assert.NoError(t, err)
	assert.Equal(t, "re_new", result.GatewayRefundID)
}

func TestCreateRefund_ReservationResolvedThroughLedger(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	svc := newRefundService(repo, gw, nil)

	reservationID := uuid.New()
	reservation := &models.Reservation{ID: reservationID, PaymentIntentID: ""}
	ledgerTx := completedCardCharge(100.00)
	ledgerTx.ReservationID = &reservationID

	gw.On("GetCharge", mock.Anything, "ch_123").Return(&gateway.Charge{
		ID:     "ch_123",
		Amount: decimal.NewFromFloat(100.00),
	}, nil)
	gw.On("ListRefunds", mock.Anything, "ch_123").Return([]gateway.RefundRecord{}, nil)
	gw.On("CreateRefund", mock.Anything, mock.Anything).Return(&gateway.RefundResult{
		GatewayRefundID: "re_new",
		Status:          "succeeded",
		Amount:          decimal.NewFromFloat(100.00),
	}, nil)
	repo.On("GetReservationByPaymentIntent", mock.Anything, "pi_abc123").Return(nil, gorm.ErrRecordNotFound)
	repo.On("GetTransactionByGatewayReference", mock.Anything, "pi_abc123").Return(ledgerTx, nil)
	repo.On("GetReservation", mock.Anything, reservationID).Return(reservation, nil)
	repo.On("CreateRefund", mock.Anything, mock.AnythingOfType("*models.Refund")).Return(nil)
	repo.On("DecrementReservationTotal", mock.Anything, reservationID, decimal.NewFromFloat(100.00)).Return(nil)

	result, err := svc.CreateRefund(context.Background(), models.CreateRefundRequest{
		PaymentReference: "pi_abc123",
		ChargeReference:  "ch_123",
	})

	assert.NoError(t, err)
	assert.Equal(t, reservationID.String(), result.ReservationID)
}

func TestRepairRefundFields_RebuildsFromGatewayTruth(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	svc := newRefundService(repo, gw, nil)

	tx := completedCardCharge(100.00)
	tx.StripePaymentID = "ch_123"
	// Ledger thinks nothing was refunded; the gateway disagrees.
	tx.RefundedAmount = nullDecimal(0)
	tx.AvailableRefundAmount = nullDecimal(100.00)

	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	gw.On("ListRefunds", mock.Anything, "ch_123").Return([]gateway.RefundRecord{
		{ID: "re_1", Amount: decimal.NewFromFloat(40.00), Status: "succeeded"},
		{ID: "re_2", Amount: decimal.NewFromFloat(10.00), Status: "failed"},
	}, nil)
	repo.On("OverwriteRefundFields", mock.Anything, tx.ID,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromFloat(40.00)) }),
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromFloat(60.00)) }),
		true).Return(nil)

	result, err := svc.RepairRefundFields(context.Background(), tx.ID)

	assert.NoError(t, err)
	assert.True(t, result.Drifted)
	assert.True(t, result.RefundedAmount.Equal(decimal.NewFromFloat(40.00)))
	assert.True(t, result.AvailableRefundAmount.Equal(decimal.NewFromFloat(60.00)))
	assert.True(t, result.IsRefundable)
	assert.Equal(t, 2, result.GatewayRefundCount)
	repo.AssertExpectations(t)
}

func TestRepairRefundFields_PendingRefundReservesAmount(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	svc := newRefundService(repo, gw, nil)

	tx := completedCardCharge(100.00)
	tx.StripePaymentID = "ch_123"
	tx.RefundedAmount = nullDecimal(40.00)
	tx.AvailableRefundAmount = nullDecimal(60.00)

	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	gw.On("ListRefunds", mock.Anything, "ch_123").Return([]gateway.RefundRecord{
		{ID: "re_1", Amount: decimal.NewFromFloat(40.00), Status: "succeeded"},
		{ID: "re_2", Amount: decimal.NewFromFloat(10.00), Status: "pending"},
		{ID: "re_3", Amount: decimal.NewFromFloat(5.00), Status: "failed"},
	}, nil)
	repo.On("OverwriteRefundFields", mock.Anything, tx.ID,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromFloat(50.00)) }),
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromFloat(50.00)) }),
		true).Return(nil)

	result, err := svc.RepairRefundFields(context.Background(), tx.ID)

	assert.NoError(t, err)
	assert.True(t, result.Drifted)
	assert.True(t, result.RefundedAmount.Equal(decimal.NewFromFloat(50.00)))
	assert.True(t, result.AvailableRefundAmount.Equal(decimal.NewFromFloat(50.00)))
	repo.AssertExpectations(t)
}

func TestRepairRefundFields_NoDriftWhenLedgerMatches(t *testing.T) {
	repo := new(MockLedgerStore)
	gw := new(MockPaymentGateway)
	svc := newRefundService(repo, gw, nil)

	tx := completedCardCharge(100.00)
	tx.StripePaymentID = "ch_123"
	tx.RefundedAmount = nullDecimal(40.00)
	tx.AvailableRefundAmount = nullDecimal(60.00)

	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	gw.On("ListRefunds", mock.Anything, "ch_123").Return([]gateway.RefundRecord{
		{ID: "re_1", Amount: decimal.NewFromFloat(40.00), Status: "succeeded"},
	}, nil)
	repo.On("OverwriteRefundFields", mock.Anything, tx.ID,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromFloat(40.00)) }),
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromFloat(60.00)) }),
		true).Return(nil)

	result, err := svc.RepairRefundFields(context.Background(), tx.ID)

	assert.NoError(t, err)
	assert.False(t, result.Drifted)
}

func TestRepairRefundFields_RejectsRefundRow(t *testing.T) {
	repo := new(MockLedgerStore)
	svc := newRefundService(repo, new(MockPaymentGateway), nil)

	parentID := uuid.New()
	tx := &models.PaymentTransaction{
		ID:                  uuid.New(),
		Direction:           models.DirectionRefund,
		Amount:              decimal.NewFromFloat(40.00),
		ParentTransactionID: &parentID,
		PaymentIntentID:     "pi_abc123",
	}
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)

	_, err := svc.RepairRefundFields(context.Background(), tx.ID)

	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, ReasonNotACharge, validationErr.Code)
}
