package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

const ledgerColumns = `id, user_id, operation, amount, balance_after, reason,
	reference_type, reference_id, actor_id, created_at`

func scanLedgerEntry(row rowScanner) (*models.CreditLedgerEntry, error) {
	var e models.CreditLedgerEntry
	err := row.Scan(
		&e.ID, &e.UserID, &e.Operation, &e.Amount, &e.BalanceAfter, &e.Reason,
		&e.ReferenceType, &e.ReferenceID, &e.ActorID, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (d *DatabaseClient) GetCredits(ctx context.Context, userID uuid.UUID) (*models.Credits, error) {
	var c models.Credits
	err := d.db.QueryRowContext(ctx, `
		SELECT user_id, available_credits, updated_at
		FROM credits
		WHERE user_id = $1
	`, userID).Scan(&c.UserID, &c.AvailableCredits, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "credits")
	}
	return &c, nil
}

func (d *DatabaseClient) ListLedgerEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM credits_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CreditLedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// LockCredits inserts the balance row if missing, then locks it. The
// credits row is the serialization point for every ledger mutation of a user.
func (t *pgTx) LockCredits(ctx context.Context, userID uuid.UUID) (*models.Credits, error) {
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO credits (user_id, available_credits, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, t.now()); err != nil {
		return nil, fmt.Errorf("failed to ensure credits row: %w", err)
	}

	var c models.Credits
	err := t.q.QueryRowContext(ctx, `
		SELECT user_id, available_credits, updated_at
		FROM credits
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&c.UserID, &c.AvailableCredits, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "credits")
	}
	return &c, nil
}

func (t *pgTx) SetAvailableCredits(ctx context.Context, userID uuid.UUID, balance int, at time.Time) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE credits
		SET available_credits = $1, updated_at = $2
		WHERE user_id = $3
	`, balance, at, userID)
	if err != nil {
		return fmt.Errorf("failed to update credits: %w", err)
	}
	return nil
}

func (t *pgTx) SumLedger(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := t.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM credits_ledger
		WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return sum, nil
}

func (t *pgTx) FindLedgerByReference(ctx context.Context, userID uuid.UUID, op models.LedgerOperation, refType, refID string) (*models.CreditLedgerEntry, error) {
	e, err := scanLedgerEntry(t.q.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM credits_ledger
		WHERE user_id = $1 AND operation = $2 AND reference_type = $3 AND reference_id = $4
	`, userID, op, refType, refID))
	if err != nil {
		return nil, notFound(err, "ledger entry")
	}
	return e, nil
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, e *models.CreditLedgerEntry) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO credits_ledger (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.UserID, e.Operation, e.Amount, e.BalanceAfter, e.Reason,
		e.ReferenceType, e.ReferenceID, e.ActorID, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ledger entry %s/%s: %w", e.ReferenceType.String, e.ReferenceID.String, store.ErrConflict)
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}
