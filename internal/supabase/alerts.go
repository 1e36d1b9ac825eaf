package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

func (d *DatabaseClient) InsertAlert(ctx context.Context, a *models.Alert) error {
	var metadata any
	if len(a.Metadata) > 0 {
		metadata = []byte(a.Metadata)
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO system_alerts (id, level, title, message, service, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Level, a.Title, a.Message, a.Service, metadata, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns the newest alerts first. An empty level means all levels.
func (d *DatabaseClient) ListAlerts(ctx context.Context, limit int, level models.AlertLevel) ([]models.Alert, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, level, title, message, service, metadata, created_at
		FROM system_alerts
		WHERE ($1 = '' OR level = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(level), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.Level, &a.Title, &a.Message, &a.Service, &metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Metadata = metadata
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (d *DatabaseClient) InsertWebhookLog(ctx context.Context, l *models.WebhookLog) error {
	var payload any
	if len(l.Payload) > 0 {
		payload = []byte(l.Payload)
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO webhook_logs (id, provider, event_id, event_type, payload, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.Provider, l.EventID, l.EventType, payload, l.Success, l.ErrorMessage, l.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("webhook %s/%s: %w", l.Provider, l.EventID, store.ErrConflict)
		}
		return fmt.Errorf("failed to insert webhook log: %w", err)
	}
	return nil
}

func (d *DatabaseClient) ReopenFailedWebhookLog(ctx context.Context, provider, eventID string, payload []byte) (uuid.UUID, error) {
	var body any
	if len(payload) > 0 {
		body = payload
	}

	var id uuid.UUID
	err := d.db.QueryRowContext(ctx, `
		UPDATE webhook_logs
		SET payload = COALESCE($3, payload), error_message = ''
		WHERE provider = $1 AND event_id = $2 AND success = FALSE
		RETURNING id
	`, provider, eventID, body).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("failed webhook %s/%s: %w", provider, eventID, store.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to reopen webhook log: %w", err)
	}
	return id, nil
}

func (d *DatabaseClient) UpdateWebhookLogResult(ctx context.Context, id uuid.UUID, success bool, errMsg string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE webhook_logs
		SET success = $1, error_message = $2
		WHERE id = $3
	`, success, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update webhook log: %w", err)
	}
	return nil
}
