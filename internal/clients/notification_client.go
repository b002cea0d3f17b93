package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payments-service/internal/models"
)

// Notifier sends invoice and refund emails. Failures are reported but never
// allowed to fail the ledger operation that triggered them.
type Notifier interface {
	SendInvoiceNotification(ctx context.Context, n *InvoiceNotification) error
	SendRefundNotification(ctx context.Context, n *RefundNotification) error
}

// NotificationClient sends notifications via the notification-service API
type NotificationClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewNotificationClient creates a new notification client
func NewNotificationClient(baseURL string, logger *logrus.Logger) *NotificationClient {
	return &NotificationClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.WithField("component", "clients.notification"),
	}
}

// sendNotificationRequest is the API request body for notification-service
type sendNotificationRequest struct {
	Channel        string                 `json:"channel"`
	RecipientEmail string                 `json:"recipientEmail"`
	Subject        string                 `json:"subject"`
	TemplateName   string                 `json:"templateName,omitempty"`
	Variables      map[string]interface{} `json:"variables,omitempty"`
}

// InvoiceNotification contains invoice details for the email template
type InvoiceNotification struct {
	TenantID       string
	TransactionID  string
	ReservationID  string
	RecipientEmail string
	Amount         decimal.Decimal
	InvoiceMessage string
	DueDate        *time.Time
}

// RefundNotification contains refund details for the email template
type RefundNotification struct {
	TenantID       string
	ReservationID  string
	RecipientEmail string
	Amount         decimal.Decimal
	PaymentIntent  string
}

// BuildInvoiceNotification assembles an invoice notification from a ledger row
func BuildInvoiceNotification(tx *models.PaymentTransaction, recipientEmail string) *InvoiceNotification {
	n := &InvoiceNotification{
		TenantID:       tx.TenantID,
		TransactionID:  tx.ID.String(),
		RecipientEmail: recipientEmail,
		Amount:         tx.Amount,
		InvoiceMessage: tx.InvoiceMessage,
		DueDate:        tx.DueDate,
	}
	if tx.ReservationID != nil {
		n.ReservationID = tx.ReservationID.String()
	}
	return n
}

// SendInvoiceNotification sends the invoice email for an invoice-method transaction
func (c *NotificationClient) SendInvoiceNotification(ctx context.Context, n *InvoiceNotification) error {
	if n.RecipientEmail == "" {
		c.logger.WithField("transaction_id", n.TransactionID).Warn("no recipient email, skipping invoice notification")
		return nil
	}

	req := sendNotificationRequest{
		Channel:        "EMAIL",
		RecipientEmail: n.RecipientEmail,
		Subject:        fmt.Sprintf("Invoice for your booking - %s", n.Amount.StringFixed(2)),
		TemplateName:   "booking-invoice",
		Variables: map[string]interface{}{
			"tenantId":       n.TenantID,
			"transactionId":  n.TransactionID,
			"reservationId":  n.ReservationID,
			"amount":         n.Amount.StringFixed(2),
			"invoiceMessage": n.InvoiceMessage,
		},
	}
	if n.DueDate != nil {
		req.Variables["dueDate"] = n.DueDate.Format("2006-01-02")
	}

	return c.send(ctx, req)
}

// SendRefundNotification sends the refund confirmation email
func (c *NotificationClient) SendRefundNotification(ctx context.Context, n *RefundNotification) error {
	if n.RecipientEmail == "" {
		c.logger.WithField("reservation_id", n.ReservationID).Warn("no recipient email, skipping refund notification")
		return nil
	}

	req := sendNotificationRequest{
		Channel:        "EMAIL",
		RecipientEmail: n.RecipientEmail,
		Subject:        fmt.Sprintf("Refund processed - %s", n.Amount.StringFixed(2)),
		TemplateName:   "booking-refund",
		Variables: map[string]interface{}{
			"tenantId":      n.TenantID,
			"reservationId": n.ReservationID,
			"amount":        n.Amount.StringFixed(2),
			"paymentIntent": n.PaymentIntent,
		},
	}

	return c.send(ctx, req)
}

func (c *NotificationClient) send(ctx context.Context, reqBody sendNotificationRequest) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal notification request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/notifications/send", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"template":  reqBody.TemplateName,
		"recipient": reqBody.RecipientEmail,
	}).Info("notification sent")
	return nil
}
