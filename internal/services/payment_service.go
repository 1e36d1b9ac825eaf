package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

const PaymentProvider = "payments"

// Payment events that grant credits.
const (
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
)

// Outcomes reported back to the payment gateway.
const (
	PaymentCredited  = "credited"
	PaymentIgnored   = "ignored"
	PaymentDuplicate = "duplicate"
)

// PaymentService turns credit-purchase webhooks into ledger ADD entries. Each
// delivery is logged in webhook_logs; a redelivered event is acknowledged
// without side effects unless its earlier delivery failed.
type PaymentService struct {
	webhooks store.WebhookStore
	credits  *CreditService
	logger   *zap.Logger
	now      Clock
}

func NewPaymentService(webhooks store.WebhookStore, credits *CreditService, log *zap.Logger, now Clock) *PaymentService {
	return &PaymentService{webhooks: webhooks, credits: credits, logger: logger.OrNop(log), now: orNow(now)}
}

func (s *PaymentService) HandleEvent(ctx context.Context, evt models.PaymentWebhookEvent, payload []byte) (string, error) {
	entry := &models.WebhookLog{
		ID:        uuid.New(),
		Provider:  PaymentProvider,
		EventID:   evt.ID + ":" + evt.Event,
		EventType: evt.Event,
		Payload:   payload,
		CreatedAt: s.now(),
	}
	logID, err := s.claim(ctx, entry)
	if errors.Is(err, store.ErrConflict) {
		s.logger.Info("payment webhook already received", zap.String("event_id", entry.EventID))
		return PaymentDuplicate, nil
	}
	if err != nil {
		return "", err
	}

	outcome, err := s.apply(ctx, evt)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if logErr := s.webhooks.UpdateWebhookLogResult(ctx, logID, err == nil, errMsg); logErr != nil {
		s.logger.Error("failed to update webhook log", zap.String("event_id", entry.EventID), zap.Error(logErr))
	}

	if err != nil {
		s.logger.Warn("payment webhook rejected",
			zap.String("event_id", entry.EventID), zap.Error(err))
		return "", err
	}
	return outcome, nil
}

// claim logs the delivery and returns the log id to record the result on.
// A redelivery of an event whose earlier attempt failed reuses that log row;
// ErrConflict means the event was already handled successfully.
func (s *PaymentService) claim(ctx context.Context, entry *models.WebhookLog) (uuid.UUID, error) {
	err := s.webhooks.InsertWebhookLog(ctx, entry)
	if err == nil {
		return entry.ID, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return uuid.Nil, fmt.Errorf("log webhook: %w", err)
	}

	id, err := s.webhooks.ReopenFailedWebhookLog(ctx, entry.Provider, entry.EventID, entry.Payload)
	if errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, store.ErrConflict
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("reopen webhook log: %w", err)
	}
	s.logger.Info("retrying failed payment webhook", zap.String("event_id", entry.EventID))
	return id, nil
}

func (s *PaymentService) apply(ctx context.Context, evt models.PaymentWebhookEvent) (string, error) {
	if evt.Event != EventPaymentConfirmed && evt.Event != EventPaymentReceived {
		return PaymentIgnored, nil
	}

	userID, err := uuid.Parse(evt.UserID)
	if err != nil {
		return "", apperr.Validation("user_id must be a valid UUID")
	}
	if evt.Credits <= 0 {
		return "", apperr.Validation("credits must be positive")
	}

	entry, err := s.credits.Add(ctx, userID, evt.Credits,
		fmt.Sprintf("compra de créditos (%s)", evt.ID), models.ReferencePayment, evt.ID)
	if err != nil {
		return "", err
	}

	s.logger.Info("credits purchased",
		zap.String("user_id", userID.String()),
		zap.Int("credits", evt.Credits),
		zap.Int("balance_after", entry.BalanceAfter),
		zap.String("payment_id", evt.ID),
	)
	return PaymentCredited, nil
}
