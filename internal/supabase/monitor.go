package supabase

import (
	"context"
	"fmt"
	"time"

	"webmarcas-backend/internal/models"
)

func (d *DatabaseClient) count(ctx context.Context, what, query string, args ...any) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", what, err)
	}
	return n, nil
}

func (d *DatabaseClient) CountStuckRegistros(ctx context.Context, updatedBefore time.Time) (int, error) {
	return d.count(ctx, "stuck registros", `
		SELECT COUNT(*) FROM registros
		WHERE status = 'processando' AND updated_at < $1
	`, updatedBefore)
}

func (d *DatabaseClient) CountRegistrosCreatedSince(ctx context.Context, since time.Time) (int, int, error) {
	var total, failed int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'falhou')
		FROM registros
		WHERE created_at >= $1
	`, since).Scan(&total, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count recent registros: %w", err)
	}
	return total, failed, nil
}

func (d *DatabaseClient) CountWebhookErrorsSince(ctx context.Context, since time.Time) (int, error) {
	return d.count(ctx, "webhook errors", `
		SELECT COUNT(*) FROM webhook_logs
		WHERE success = FALSE AND created_at >= $1
	`, since)
}

func (d *DatabaseClient) CountRegistrosByStatus(ctx context.Context, status models.RegistroStatus) (int, error) {
	return d.count(ctx, "registros by status", `
		SELECT COUNT(*) FROM registros WHERE status = $1
	`, status)
}

func (d *DatabaseClient) CountFailedAttemptsSince(ctx context.Context, since time.Time) (int, error) {
	return d.count(ctx, "failed attempts", `
		SELECT COUNT(*) FROM processing_logs
		WHERE success = FALSE AND created_at >= $1
	`, since)
}

func (d *DatabaseClient) CountNegativeBalances(ctx context.Context) (int, error) {
	return d.count(ctx, "negative balances", `
		SELECT COUNT(*) FROM credits WHERE available_credits < 0
	`)
}
