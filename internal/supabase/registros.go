package supabase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

const registroColumns = `id, user_id, project_id, nome_ativo, tipo_ativo, hash_sha256,
	status, attempt_number, error_message, created_at, updated_at`

const transacaoColumns = `id, registro_id, tx_hash, network, timestamp_method, proof_data,
	proof_url, confirmed_at, block_number, confirmations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistro(row rowScanner) (*models.Registro, error) {
	var r models.Registro
	err := row.Scan(
		&r.ID, &r.UserID, &r.ProjectID, &r.NomeAtivo, &r.TipoAtivo, &r.HashSHA256,
		&r.Status, &r.AttemptNumber, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanTransacao(row rowScanner) (*models.TransacaoBlockchain, error) {
	var t models.TransacaoBlockchain
	err := row.Scan(
		&t.ID, &t.RegistroID, &t.TxHash, &t.Network, &t.TimestampMethod, &t.ProofData,
		&t.ProofURL, &t.ConfirmedAt, &t.BlockNumber, &t.Confirmations,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryRegistros(ctx context.Context, q querier, query string, args ...any) ([]models.Registro, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query registros: %w", err)
	}
	defer rows.Close()

	var registros []models.Registro
	for rows.Next() {
		r, err := scanRegistro(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registro: %w", err)
		}
		registros = append(registros, *r)
	}
	return registros, rows.Err()
}

func getTransacao(ctx context.Context, q querier, registroID uuid.UUID) (*models.TransacaoBlockchain, error) {
	t, err := scanTransacao(q.QueryRowContext(ctx, `
		SELECT `+transacaoColumns+`
		FROM transacoes_blockchain
		WHERE registro_id = $1
	`, registroID))
	if err != nil {
		return nil, notFound(err, "transacao")
	}
	return t, nil
}

func (d *DatabaseClient) CreateRegistro(ctx context.Context, r *models.Registro) error {
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO registros (id, user_id, project_id, nome_ativo, tipo_ativo, hash_sha256, status, attempt_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, r.ID, r.UserID, r.ProjectID, r.NomeAtivo, r.TipoAtivo, r.HashSHA256, r.Status, r.AttemptNumber,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("registro for hash %s: %w", r.HashSHA256, store.ErrConflict)
		}
		return fmt.Errorf("failed to create registro: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetRegistro(ctx context.Context, id uuid.UUID) (*models.Registro, error) {
	r, err := scanRegistro(d.db.QueryRowContext(ctx, `
		SELECT `+registroColumns+`
		FROM registros
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err, "registro")
	}
	return r, nil
}

func (d *DatabaseClient) ListRegistros(ctx context.Context, userID uuid.UUID, limit int) ([]models.Registro, error) {
	return queryRegistros(ctx, d.db, `
		SELECT `+registroColumns+`
		FROM registros
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
}

func (d *DatabaseClient) FindActiveRegistroByHash(ctx context.Context, userID uuid.UUID, hash string) (*models.Registro, error) {
	r, err := scanRegistro(d.db.QueryRowContext(ctx, `
		SELECT `+registroColumns+`
		FROM registros
		WHERE user_id = $1 AND hash_sha256 = $2 AND status <> 'falhou'
		ORDER BY created_at ASC
		LIMIT 1
	`, userID, hash))
	if err != nil {
		return nil, notFound(err, "registro")
	}
	return r, nil
}

func (d *DatabaseClient) FindConfirmedByHash(ctx context.Context, hash string) (*models.Registro, *models.TransacaoBlockchain, error) {
	r, err := scanRegistro(d.db.QueryRowContext(ctx, `
		SELECT `+registroColumns+`
		FROM registros
		WHERE hash_sha256 = $1 AND status = 'confirmado'
		ORDER BY created_at ASC
		LIMIT 1
	`, hash))
	if err != nil {
		return nil, nil, notFound(err, "registro")
	}

	t, err := getTransacao(ctx, d.db, r.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return r, nil, nil
		}
		return nil, nil, err
	}
	return r, t, nil
}

// ListProcessable skips failed registros whose content the user registered
// again: the live copy holds the unique (user_id, hash_sha256) slot, so they
// could not be restarted.
func (d *DatabaseClient) ListProcessable(ctx context.Context, maxAttempts, limit int) ([]models.Registro, error) {
	return queryRegistros(ctx, d.db, `
		SELECT `+registroColumns+`
		FROM registros r
		WHERE r.status = 'pendente'
		   OR (r.status = 'falhou' AND r.attempt_number < $1
		       AND NOT EXISTS (
		           SELECT 1 FROM registros live
		           WHERE live.user_id = r.user_id
		             AND live.hash_sha256 = r.hash_sha256
		             AND live.status <> 'falhou'))
		ORDER BY r.created_at ASC
		LIMIT $2
	`, maxAttempts, limit)
}

func (d *DatabaseClient) GetTransacao(ctx context.Context, registroID uuid.UUID) (*models.TransacaoBlockchain, error) {
	return getTransacao(ctx, d.db, registroID)
}

func (d *DatabaseClient) ListProcessingLogs(ctx context.Context, registroID uuid.UUID) ([]models.ProcessingLogEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, registro_id, attempt_number, success, error_message, created_at
		FROM processing_logs
		WHERE registro_id = $1
		ORDER BY created_at ASC, attempt_number ASC
	`, registroID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ProcessingLogEntry
	for rows.Next() {
		var l models.ProcessingLogEntry
		if err := rows.Scan(&l.ID, &l.RegistroID, &l.AttemptNumber, &l.Success, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processing log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (t *pgTx) LockRegistro(ctx context.Context, id uuid.UUID) (*models.Registro, error) {
	r, err := scanRegistro(t.q.QueryRowContext(ctx, `
		SELECT `+registroColumns+`
		FROM registros
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, notFound(err, "registro")
	}
	return r, nil
}

func (t *pgTx) UpdateRegistroState(ctx context.Context, r *models.Registro) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE registros
		SET status = $1, attempt_number = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`, r.Status, r.AttemptNumber, r.ErrorMessage, r.UpdatedAt, r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("registro %s: %w", r.ID, store.ErrConflict)
		}
		return fmt.Errorf("failed to update registro: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("registro %s: %w", r.ID, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertTransacao(ctx context.Context, tr *models.TransacaoBlockchain) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO transacoes_blockchain (`+transacaoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, tr.ID, tr.RegistroID, tr.TxHash, tr.Network, tr.TimestampMethod, tr.ProofData,
		tr.ProofURL, tr.ConfirmedAt, tr.BlockNumber, tr.Confirmations)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transacao for registro %s: %w", tr.RegistroID, store.ErrConflict)
		}
		return fmt.Errorf("failed to insert transacao: %w", err)
	}
	return nil
}

func (t *pgTx) GetTransacao(ctx context.Context, registroID uuid.UUID) (*models.TransacaoBlockchain, error) {
	return getTransacao(ctx, t.q, registroID)
}

func (t *pgTx) InsertProcessingLog(ctx context.Context, l *models.ProcessingLogEntry) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO processing_logs (id, registro_id, attempt_number, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ID, l.RegistroID, l.AttemptNumber, l.Success, l.ErrorMessage, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert processing log: %w", err)
	}
	return nil
}
