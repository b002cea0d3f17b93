package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"payments-service/internal/events"
	"payments-service/internal/gateway"
	"payments-service/internal/models"
	"payments-service/internal/repository"
)

// WebhookService verifies and records gateway events. It deliberately never
// mutates the transaction ledger: refund bookkeeping happens on the
// synchronous update path, and the repair routine reconciles against
// gateway truth. Events here are informational.
type WebhookService struct {
	repo   repository.LedgerStore
	gw     gateway.PaymentGateway
	events *events.Publisher
	logger *logrus.Entry
}

// NewWebhookService creates a new webhook service
func NewWebhookService(repo repository.LedgerStore, gw gateway.PaymentGateway, publisher *events.Publisher, logger *logrus.Logger) *WebhookService {
	return &WebhookService{
		repo:   repo,
		gw:     gw,
		events: publisher,
		logger: logger.WithField("component", "services.webhook"),
	}
}

// ProcessWebhook verifies the signed payload, dedupes by the gateway's own
// event id, and dispatches. A signature failure is terminal and leaves no
// state behind.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gw.VerifyWebhook(payload, signature)
	if err != nil {
		s.logger.WithError(err).Warn("webhook signature verification failed")
		return models.NewValidationError("invalid_signature", "webhook signature verification failed")
	}

	// Gateways redeliver; the event id is the dedupe key.
	if existing, err := s.repo.GetWebhookEvent(ctx, event.EventID); err == nil {
		s.logger.WithFields(logrus.Fields{
			"event_id":   event.EventID,
			"event_type": event.EventType,
			"processed":  existing.Processed,
		}).Info("duplicate webhook event ignored")
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check webhook event: %w", err)
	}

	record := &models.WebhookEvent{
		EventID:         event.EventID,
		EventType:       event.EventType,
		PaymentIntentID: event.PaymentIntentID,
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(event.RawPayload, &raw); err == nil {
		record.Payload = raw
	}
	if err := s.repo.CreateWebhookEvent(ctx, record); err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}

	if err := s.handleEvent(ctx, event); err != nil {
		record.ProcessingError = err.Error()
		if uerr := s.repo.UpdateWebhookEvent(ctx, record); uerr != nil {
			s.logger.WithError(uerr).Error("failed to record webhook processing error")
		}
		return err
	}

	now := time.Now().UTC()
	record.Processed = true
	record.ProcessedAt = &now
	if err := s.repo.UpdateWebhookEvent(ctx, record); err != nil {
		s.logger.WithError(err).Error("failed to mark webhook event processed")
	}
	return nil
}

func (s *WebhookService) handleEvent(ctx context.Context, event *gateway.WebhookEvent) error {
	fields := logrus.Fields{
		"event_id":          event.EventID,
		"event_type":        event.EventType,
		"payment_intent_id": event.PaymentIntentID,
	}

	switch event.EventType {
	case gateway.EventChargeSucceeded:
		s.logger.WithFields(fields).Info("gateway reported charge succeeded")
		if s.events != nil {
			s.events.PublishWebhookReceived(ctx, event.EventType, event.EventID, event.PaymentIntentID)
		}
	case gateway.EventChargeFailed:
		s.logger.WithFields(fields).Warn("gateway reported charge failed")
		if s.events != nil {
			s.events.PublishWebhookReceived(ctx, event.EventType, event.EventID, event.PaymentIntentID)
		}
	default:
		s.logger.WithFields(fields).Debug("unhandled webhook event type")
	}
	return nil
}
