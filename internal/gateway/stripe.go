package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig carries the credentials the adapter needs. Passed explicitly
// at construction so test doubles and per-tenant accounts need no global
// state.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// StripeGateway implements the PaymentGateway interface for Stripe
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a new Stripe gateway instance
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("Stripe secret key is required")
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// GetPaymentIntent retrieves a payment intent by id
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, g.handleStripeError(err)
	}

	result := &PaymentIntent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   centsToAmount(pi.Amount),
		Currency: strings.ToUpper(string(pi.Currency)),
		Metadata: pi.Metadata,
	}
	if pi.LatestCharge != nil {
		result.LatestChargeID = pi.LatestCharge.ID
	}
	if pi.Customer != nil {
		result.CustomerID = pi.Customer.ID
	}
	return result, nil
}

// GetPaymentIntentStatus retrieves just the status of a payment intent
func (g *StripeGateway) GetPaymentIntentStatus(ctx context.Context, id string) (string, error) {
	pi, err := g.GetPaymentIntent(ctx, id)
	if err != nil {
		return "", err
	}
	return pi.Status, nil
}

// ListCharges lists charges created against a payment intent
func (g *StripeGateway) ListCharges(ctx context.Context, paymentIntentID string) ([]Charge, error) {
	params := &stripe.ChargeListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx

	var charges []Charge
	iter := g.api.Charges.List(params)
	for iter.Next() {
		charges = append(charges, chargeFromStripe(iter.Charge()))
	}
	if err := iter.Err(); err != nil {
		return nil, g.handleStripeError(err)
	}
	return charges, nil
}

// GetCharge retrieves a charge by id
func (g *StripeGateway) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx

	ch, err := g.api.Charges.Get(chargeID, params)
	if err != nil {
		return nil, g.handleStripeError(err)
	}
	result := chargeFromStripe(ch)
	return &result, nil
}

// ListRefunds lists the gateway's refund history for a charge
func (g *StripeGateway) ListRefunds(ctx context.Context, chargeID string) ([]RefundRecord, error) {
	params := &stripe.RefundListParams{
		Charge: stripe.String(chargeID),
	}
	params.Context = ctx

	var refunds []RefundRecord
	iter := g.api.Refunds.List(params)
	for iter.Next() {
		r := iter.Refund()
		refunds = append(refunds, RefundRecord{
			ID:      r.ID,
			Amount:  centsToAmount(r.Amount),
			Status:  string(r.Status),
			Created: r.Created,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, g.handleStripeError(err)
	}
	return refunds, nil
}

// CreateRefund executes a refund, optionally scoped to a connected account
func (g *StripeGateway) CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{}
	params.Context = ctx

	if req.ChargeID != "" {
		params.Charge = stripe.String(req.ChargeID)
	} else {
		params.PaymentIntent = stripe.String(req.PaymentIntentID)
	}

	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(amountToCents(req.Amount))
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = req.Metadata
	}
	if req.ConnectedAccountID != "" {
		params.SetStripeAccount(req.ConnectedAccountID)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, g.handleStripeError(err)
	}

	return &RefundResult{
		GatewayRefundID: r.ID,
		Status:          string(r.Status),
		Amount:          centsToAmount(r.Amount),
		Currency:        strings.ToUpper(string(r.Currency)),
	}, nil
}

// AttachPaymentMethod attaches a payment method to a customer and sets it as default
func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	attachParams := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	attachParams.Context = ctx

	if _, err := g.api.PaymentMethods.Attach(paymentMethodID, attachParams); err != nil {
		return g.handleStripeError(err)
	}

	updateParams := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	updateParams.Context = ctx

	if _, err := g.api.Customers.Update(customerID, updateParams); err != nil {
		return g.handleStripeError(err)
	}
	return nil
}

// GetOrCreateCustomer looks up a customer by email, creating one if none exists
func (g *StripeGateway) GetOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	listParams := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := g.api.Customers.List(listParams)
	for iter.Next() {
		c := iter.Customer()
		return &Customer{ID: c.ID, Email: c.Email, Name: c.Name}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, g.handleStripeError(err)
	}

	createParams := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	createParams.Context = ctx
	if name != "" {
		createParams.Name = stripe.String(name)
	}

	c, err := g.api.Customers.New(createParams)
	if err != nil {
		return nil, g.handleStripeError(err)
	}
	return &Customer{ID: c.ID, Email: c.Email, Name: c.Name}, nil
}

// CreateAndConfirmPaymentIntent creates a payment intent carrying
// reservation/transaction metadata and confirms it in the same call.
func (g *StripeGateway) CreateAndConfirmPaymentIntent(ctx context.Context, req *CreateChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountToCents(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Confirm:  stripe.Bool(true),
		Metadata: map[string]string{
			"tenant_id":      req.TenantID,
			"reservation_id": req.ReservationID,
			"transaction_id": req.TransactionID,
		},
	}
	params.Context = ctx

	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodID)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, g.handleStripeError(err)
	}

	result := &ChargeResult{
		PaymentIntentID: pi.ID,
		Status:          string(pi.Status),
		Amount:          centsToAmount(pi.Amount),
		Currency:        strings.ToUpper(string(pi.Currency)),
	}
	if pi.LatestCharge != nil {
		result.ChargeID = pi.LatestCharge.ID
	}
	return result, nil
}

// VerifyWebhook verifies a webhook payload against the shared secret and parses it
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("webhook secret not configured")
	}

	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, NewGatewayError("webhook_verification_failed", err.Error(), false)
	}

	parsed := &WebhookEvent{
		EventID:    event.ID,
		EventType:  string(event.Type),
		RawPayload: payload,
	}

	if obj := event.Data.Object; obj != nil {
		if id, ok := obj["id"].(string); ok && strings.HasPrefix(id, "ch_") {
			parsed.ChargeID = id
		}
		if pi, ok := obj["payment_intent"].(string); ok {
			parsed.PaymentIntentID = pi
		} else if id, ok := obj["id"].(string); ok && strings.HasPrefix(id, "pi_") {
			parsed.PaymentIntentID = id
		}
	}

	return parsed, nil
}

// Helper methods

func chargeFromStripe(ch *stripe.Charge) Charge {
	result := Charge{
		ID:             ch.ID,
		Amount:         centsToAmount(ch.Amount),
		AmountRefunded: centsToAmount(ch.AmountRefunded),
		Currency:       strings.ToUpper(string(ch.Currency)),
		Status:         string(ch.Status),
		Created:        ch.Created,
	}
	if ch.PaymentIntent != nil {
		result.PaymentIntentID = ch.PaymentIntent.ID
	}
	return result
}

func amountToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func centsToAmount(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

func (g *StripeGateway) handleStripeError(err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return &GatewayError{
			Code:        string(stripeErr.Code),
			Message:     stripeErr.Msg,
			DeclineCode: string(stripeErr.DeclineCode),
			Retryable:   g.isRetryable(stripeErr),
		}
	}
	return NewGatewayError("unknown_error", err.Error(), false)
}

func (g *StripeGateway) isRetryable(err *stripe.Error) bool {
	if err.HTTPStatusCode == 429 {
		return true
	}

	retryableCodes := map[stripe.ErrorCode]bool{
		stripe.ErrorCodeRateLimit:           true,
		stripe.ErrorCodeLockTimeout:         true,
		stripe.ErrorCodeIdempotencyKeyInUse: true,
	}

	return retryableCodes[err.Code]
}
