package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/ledger"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/metrics"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

// CreditMutation describes one ledger write. Amount is a magnitude for every
// operation except ADJUST, where it carries the sign.
type CreditMutation struct {
	UserID        uuid.UUID
	Operation     models.LedgerOperation
	Amount        int
	Reason        string
	ReferenceType string
	ReferenceID   string
	ActorID       uuid.NullUUID
}

type CreditService struct {
	tx     store.TxRunner
	ledger store.LedgerStore
	logger *zap.Logger
	now    Clock
}

func NewCreditService(tx store.TxRunner, ledgerStore store.LedgerStore, log *zap.Logger, now Clock) *CreditService {
	return &CreditService{
		tx:     tx,
		ledger: ledgerStore,
		logger: logger.OrNop(log),
		now:    orNow(now),
	}
}

// Apply runs m in its own transaction.
func (s *CreditService) Apply(ctx context.Context, m CreditMutation) (*models.CreditLedgerEntry, error) {
	var entry *models.CreditLedgerEntry
	err := s.tx.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		entry, err = s.ApplyInTx(ctx, tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyInTx appends one ledger entry and refreshes the cached balance inside
// the caller's transaction. The user's credits row is locked first, so
// concurrent mutations for the same user are serialized. When a reference is
// given and an entry with the same operation and reference already exists,
// that entry is returned and nothing is written.
func (s *CreditService) ApplyInTx(ctx context.Context, tx store.Tx, m CreditMutation) (*models.CreditLedgerEntry, error) {
	if m.UserID == uuid.Nil {
		return nil, apperr.Validation("user_id is required")
	}
	if !ledger.ValidOperation(m.Operation) {
		return nil, apperr.Validation("unknown ledger operation %q", m.Operation)
	}
	if m.ReferenceID != "" && m.ReferenceType == "" {
		m.ReferenceType = models.ReferenceManual
	}

	if _, err := tx.LockCredits(ctx, m.UserID); err != nil {
		return nil, fmt.Errorf("lock credits: %w", err)
	}

	if m.ReferenceID != "" {
		existing, err := tx.FindLedgerByReference(ctx, m.UserID, m.Operation, m.ReferenceType, m.ReferenceID)
		if err == nil {
			s.logger.Debug("ledger mutation already applied",
				zap.String("user_id", m.UserID.String()),
				zap.String("operation", string(m.Operation)),
				zap.String("reference", m.ReferenceType+":"+m.ReferenceID),
			)
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("find ledger reference: %w", err)
		}
	}

	previous, err := tx.SumLedger(ctx, m.UserID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}

	signed, balanceAfter, err := ledger.Apply(previous, m.Operation, m.Amount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &models.CreditLedgerEntry{
		ID:           uuid.New(),
		UserID:       m.UserID,
		Operation:    m.Operation,
		Amount:       signed,
		BalanceAfter: balanceAfter,
		Reason:       m.Reason,
		ActorID:      m.ActorID,
		CreatedAt:    now,
	}
	if m.ReferenceID != "" {
		entry.ReferenceType = sql.NullString{String: m.ReferenceType, Valid: true}
		entry.ReferenceID = sql.NullString{String: m.ReferenceID, Valid: true}
	}

	if err := tx.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, storeErr(err, "ledger entry")
	}
	if err := tx.SetAvailableCredits(ctx, m.UserID, balanceAfter, now); err != nil {
		return nil, fmt.Errorf("update cached balance: %w", err)
	}

	metrics.LedgerOperations.WithLabelValues(string(m.Operation)).Inc()
	return entry, nil
}

func (s *CreditService) Add(ctx context.Context, userID uuid.UUID, amount int, reason, refType, refID string) (*models.CreditLedgerEntry, error) {
	return s.Apply(ctx, CreditMutation{
		UserID: userID, Operation: models.OperationAdd, Amount: amount,
		Reason: reason, ReferenceType: refType, ReferenceID: refID,
	})
}

func (s *CreditService) Consume(ctx context.Context, userID uuid.UUID, amount int, reason, refType, refID string) (*models.CreditLedgerEntry, error) {
	return s.Apply(ctx, CreditMutation{
		UserID: userID, Operation: models.OperationConsume, Amount: amount,
		Reason: reason, ReferenceType: refType, ReferenceID: refID,
	})
}

func (s *CreditService) Refund(ctx context.Context, userID uuid.UUID, amount int, reason, refType, refID string) (*models.CreditLedgerEntry, error) {
	return s.Apply(ctx, CreditMutation{
		UserID: userID, Operation: models.OperationRefund, Amount: amount,
		Reason: reason, ReferenceType: refType, ReferenceID: refID,
	})
}

// Adjust applies a signed correction on behalf of an administrator. The
// actor is stored on the entry and the change is written to the audit log.
func (s *CreditService) Adjust(ctx context.Context, actorID, userID uuid.UUID, delta int, reason string) (*models.CreditLedgerEntry, error) {
	if actorID == uuid.Nil {
		return nil, apperr.Forbidden("credit adjustments require an identified administrator")
	}
	if reason == "" {
		return nil, apperr.Validation("reason is required for adjustments")
	}

	entry, err := s.Apply(ctx, CreditMutation{
		UserID: userID, Operation: models.OperationAdjust, Amount: delta,
		Reason: reason, ActorID: uuid.NullUUID{UUID: actorID, Valid: true},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("credits adjusted",
		zap.String("audit", "credits.adjust"),
		zap.String("actor_id", actorID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("delta", delta),
		zap.Int("balance_after", entry.BalanceAfter),
		zap.String("reason", reason),
		zap.String("entry_id", entry.ID.String()),
	)
	return entry, nil
}

func (s *CreditService) Expire(ctx context.Context, userID uuid.UUID, amount int, reason string) (*models.CreditLedgerEntry, error) {
	return s.Apply(ctx, CreditMutation{
		UserID: userID, Operation: models.OperationExpire, Amount: amount, Reason: reason,
	})
}

// Reconcile recomputes the cached balance from the ledger and repairs it on
// drift. It never writes ledger entries, so running it twice is harmless.
func (s *CreditService) Reconcile(ctx context.Context, userID uuid.UUID) (*models.ReconcileResult, error) {
	result := &models.ReconcileResult{UserID: userID.String()}
	err := s.tx.RunInTx(ctx, func(tx store.Tx) error {
		credits, err := tx.LockCredits(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock credits: %w", err)
		}
		sum, err := tx.SumLedger(ctx, userID)
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}

		result.CachedBefore = credits.AvailableCredits
		result.LedgerSum = sum
		if credits.AvailableCredits == sum {
			return nil
		}

		result.Repaired = true
		return tx.SetAvailableCredits(ctx, userID, sum, s.now())
	})
	if err != nil {
		return nil, err
	}

	if result.Repaired {
		s.logger.Warn("cached balance drifted from ledger, repaired",
			zap.String("user_id", userID.String()),
			zap.Int("cached_before", result.CachedBefore),
			zap.Int("ledger_sum", result.LedgerSum),
		)
	}
	return result, nil
}

// GetBalance returns the cached balance; users without a credits row have 0.
func (s *CreditService) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	credits, err := s.ledger.GetCredits(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return credits.AvailableCredits, nil
}

// ListEntries returns the user's ledger, newest first.
func (s *CreditService) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	return s.ledger.ListLedgerEntries(ctx, userID, clampLimit(limit))
}
