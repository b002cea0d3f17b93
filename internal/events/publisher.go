package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Subjects published by the payments service
const (
	SubjectChargeSucceeded = "payment.charge.succeeded"
	SubjectRefundCompleted = "payment.refund.completed"
	SubjectRefundExecuted  = "payment.refund.executed"
	SubjectWebhookReceived = "payment.webhook.received"
)

// Publisher emits payment lifecycle events on NATS. Publishing is best
// effort; a failed publish is logged and never fails the operation that
// triggered it.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS and returns a publisher
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("payments-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "events.publisher"),
	}, nil
}

type chargeSucceededEvent struct {
	TenantID        string          `json:"tenantId"`
	TransactionID   string          `json:"transactionId"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	OccurredAt      time.Time       `json:"occurredAt"`
}

type refundCompletedEvent struct {
	TenantID            string          `json:"tenantId"`
	RefundTransactionID string          `json:"refundTransactionId"`
	ParentTransactionID string          `json:"parentTransactionId"`
	Amount              decimal.Decimal `json:"amount"`
	OccurredAt          time.Time       `json:"occurredAt"`
}

type refundExecutedEvent struct {
	TenantID        string          `json:"tenantId"`
	GatewayRefundID string          `json:"gatewayRefundId"`
	ReservationID   string          `json:"reservationId"`
	Amount          decimal.Decimal `json:"amount"`
	OccurredAt      time.Time       `json:"occurredAt"`
}

type webhookReceivedEvent struct {
	EventType       string    `json:"eventType"`
	EventID         string    `json:"eventId"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// PublishChargeSucceeded announces that a charge reached a terminal success
// status.
func (p *Publisher) PublishChargeSucceeded(ctx context.Context, tenantID, transactionID, paymentIntentID string, amount decimal.Decimal) error {
	return p.publish(SubjectChargeSucceeded, chargeSucceededEvent{
		TenantID:        tenantID,
		TransactionID:   transactionID,
		PaymentIntentID: paymentIntentID,
		Amount:          amount,
		OccurredAt:      time.Now().UTC(),
	})
}

// PublishRefundCompleted announces that a refund ledger row completed and was
// folded into its parent charge.
func (p *Publisher) PublishRefundCompleted(ctx context.Context, tenantID, refundTransactionID, parentTransactionID string, amount decimal.Decimal) error {
	return p.publish(SubjectRefundCompleted, refundCompletedEvent{
		TenantID:            tenantID,
		RefundTransactionID: refundTransactionID,
		ParentTransactionID: parentTransactionID,
		Amount:              amount,
		OccurredAt:          time.Now().UTC(),
	})
}

// PublishRefundExecuted announces that a refund was executed against the
// gateway.
func (p *Publisher) PublishRefundExecuted(ctx context.Context, tenantID, gatewayRefundID, reservationID string, amount decimal.Decimal) error {
	return p.publish(SubjectRefundExecuted, refundExecutedEvent{
		TenantID:        tenantID,
		GatewayRefundID: gatewayRefundID,
		ReservationID:   reservationID,
		Amount:          amount,
		OccurredAt:      time.Now().UTC(),
	})
}

// PublishWebhookReceived announces a verified gateway webhook event.
func (p *Publisher) PublishWebhookReceived(ctx context.Context, eventType, eventID, paymentIntentID string) error {
	return p.publish(SubjectWebhookReceived, webhookReceivedEvent{
		EventType:       eventType,
		EventID:         eventID,
		PaymentIntentID: paymentIntentID,
		OccurredAt:      time.Now().UTC(),
	})
}

func (p *Publisher) publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.WithError(err).WithField("subject", subject).Error("failed to marshal event")
		return err
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("failed to publish event")
		return err
	}
	return nil
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.WithError(err).Warn("failed to drain NATS connection")
	}
}
