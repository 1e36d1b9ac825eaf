package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/fingerprint"
	"webmarcas-backend/internal/lifecycle"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/metrics"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
	"webmarcas-backend/internal/supabase"
)

// CreditsPerRegistro is debited when a registro is confirmed.
const CreditsPerRegistro = 1

type CreateRegistroInput struct {
	UserID    uuid.UUID
	NomeAtivo string
	TipoAtivo string
	Hash      string
	ProjectID uuid.NullUUID
}

// Confirmation carries the anchoring result committed with a confirmation.
type Confirmation struct {
	TxHash          string
	Network         string
	TimestampMethod string
	ProofData       string
	ProofURL        string
	BlockNumber     *int64
	Confirmations   *int64
}

// RegistroStatus is the polling view of one registro.
type RegistroStatus struct {
	Registro  *models.Registro
	Transacao *models.TransacaoBlockchain
	Logs      []models.ProcessingLogEntry
}

type RegistroService struct {
	registros store.RegistroStore
	projects  store.ProjectStore
	tx        store.TxRunner
	credits   *CreditService
	events    EventPublisher
	logger    *zap.Logger
	now       Clock
}

func NewRegistroService(
	registros store.RegistroStore,
	projects store.ProjectStore,
	tx store.TxRunner,
	credits *CreditService,
	events EventPublisher,
	log *zap.Logger,
	now Clock,
) *RegistroService {
	if events == nil {
		events = noopPublisher{}
	}
	return &RegistroService{
		registros: registros,
		projects:  projects,
		tx:        tx,
		credits:   credits,
		events:    events,
		logger:    logger.OrNop(log),
		now:       orNow(now),
	}
}

// CheckDuplicate looks for a live registro of the user with the same hash.
// The answer is advisory: the unique index on registros settles races.
func (s *RegistroService) CheckDuplicate(ctx context.Context, userID uuid.UUID, hash string) (*models.Registro, bool, error) {
	normalized, err := fingerprint.Normalize(hash)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.registros.FindActiveRegistroByHash(ctx, userID, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("check duplicate: %w", err)
	}
	return existing, true, nil
}

func (s *RegistroService) Create(ctx context.Context, in CreateRegistroInput) (*models.Registro, error) {
	nome := strings.TrimSpace(in.NomeAtivo)
	tipo := strings.TrimSpace(in.TipoAtivo)
	if nome == "" || tipo == "" {
		return nil, apperr.Validation("nome_ativo and tipo_ativo are required")
	}

	hash, err := fingerprint.Normalize(in.Hash)
	if err != nil {
		return nil, err
	}

	if existing, dup, err := s.CheckDuplicate(ctx, in.UserID, hash); err != nil {
		return nil, err
	} else if dup {
		return nil, apperr.Conflict("hash already registered in registro %s", existing.ID)
	}

	balance, err := s.credits.GetBalance(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if balance < CreditsPerRegistro {
		return nil, apperr.InsufficientCredits("insufficient credits: available %d, required %d", balance, CreditsPerRegistro)
	}

	if in.ProjectID.Valid {
		project, err := s.projects.GetProject(ctx, in.ProjectID.UUID)
		if err != nil {
			return nil, storeErr(err, "project")
		}
		if project.OwnerUserID != in.UserID {
			return nil, apperr.NotFound("project not found")
		}
		if project.Status != models.ProjectActive {
			return nil, apperr.Validation("project %s is archived", project.ID)
		}
	}

	now := s.now()
	r := &models.Registro{
		ID:         uuid.New(),
		UserID:     in.UserID,
		ProjectID:  in.ProjectID,
		NomeAtivo:  nome,
		TipoAtivo:  tipo,
		HashSHA256: hash,
		Status:     models.StatusPendente,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.registros.CreateRegistro(ctx, r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("hash already registered")
		}
		return nil, fmt.Errorf("create registro: %w", err)
	}

	metrics.RegistroTransitions.WithLabelValues(string(models.StatusPendente)).Inc()
	s.publish(ctx, r, supabase.EventRegistroCreated, supabase.CreatedPayload(r.HashSHA256))
	s.logger.Info("registro created",
		zap.String("registro_id", r.ID.String()),
		zap.String("user_id", r.UserID.String()),
	)
	return r, nil
}

// Get returns the registro only to its owner; anyone else gets NotFound.
func (s *RegistroService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Registro, error) {
	r, err := s.registros.GetRegistro(ctx, id)
	if err != nil {
		return nil, storeErr(err, "registro")
	}
	if r.UserID != userID {
		return nil, apperr.NotFound("registro not found")
	}
	return r, nil
}

func (s *RegistroService) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Registro, error) {
	return s.registros.ListRegistros(ctx, userID, clampLimit(limit))
}

func (s *RegistroService) Status(ctx context.Context, userID, id uuid.UUID) (*RegistroStatus, error) {
	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	status := &RegistroStatus{Registro: r}
	if r.Status == models.StatusConfirmado {
		t, err := s.registros.GetTransacao(ctx, r.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get transacao: %w", err)
		}
		status.Transacao = t
	}

	status.Logs, err = s.registros.ListProcessingLogs(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list processing logs: %w", err)
	}
	return status, nil
}

// CommitStart moves a registro into processando.
func (s *RegistroService) CommitStart(ctx context.Context, id uuid.UUID) (*models.Registro, error) {
	var r *models.Registro
	err := s.tx.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockRegistro(ctx, id)
		if err != nil {
			return storeErr(err, "registro")
		}
		if err := lifecycle.Start(r, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateRegistroState(ctx, r); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.Conflict("another registro with this hash is active")
			}
			return fmt.Errorf("update registro: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RegistroTransitions.WithLabelValues(string(models.StatusProcessando)).Inc()
	s.publish(ctx, r, supabase.EventRegistroProcessing, supabase.ProcessingPayload(r.AttemptNumber+1))
	return r, nil
}

// CommitFailure moves a processando registro into falhou and records the
// failed attempt, both in one transaction.
func (s *RegistroService) CommitFailure(ctx context.Context, id uuid.UUID, reason string) (*models.Registro, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "anchoring failed"
	}

	var r *models.Registro
	err := s.tx.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockRegistro(ctx, id)
		if err != nil {
			return storeErr(err, "registro")
		}
		entry, err := lifecycle.Fail(r, reason, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateRegistroState(ctx, r); err != nil {
			return fmt.Errorf("update registro: %w", err)
		}
		entry.ID = uuid.New()
		return tx.InsertProcessingLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	definitive := lifecycle.IsDefinitiveFailure(r)
	metrics.RegistroTransitions.WithLabelValues(string(models.StatusFalhou)).Inc()
	s.publish(ctx, r, supabase.EventRegistroFailed, supabase.FailedPayload(r.AttemptNumber, reason, definitive))

	fields := []zap.Field{
		zap.String("registro_id", r.ID.String()),
		zap.Int("attempt_number", r.AttemptNumber),
		zap.String("error", reason),
	}
	if definitive {
		s.logger.Warn("registro failed definitively", fields...)
	} else {
		s.logger.Info("registro attempt failed", fields...)
	}
	return r, nil
}

// CommitConfirmation flips the registro to confirmado, stores its blockchain
// transaction, logs the successful attempt and debits one credit, all in a
// single transaction. The debit is keyed by the registro id, and a second
// delivery for an already confirmed registro returns the stored state without
// writing anything.
func (s *RegistroService) CommitConfirmation(ctx context.Context, id uuid.UUID, c Confirmation) (*models.Registro, *models.TransacaoBlockchain, error) {
	if strings.TrimSpace(c.TxHash) == "" {
		return nil, nil, apperr.Validation("tx_hash is required")
	}
	if c.Network == "" || c.TimestampMethod == "" {
		return nil, nil, apperr.Validation("network and timestamp_method are required")
	}

	var (
		r        *models.Registro
		t        *models.TransacaoBlockchain
		replayed bool
	)
	err := s.tx.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockRegistro(ctx, id)
		if err != nil {
			return storeErr(err, "registro")
		}

		if r.Status == models.StatusConfirmado {
			replayed = true
			t, err = tx.GetTransacao(ctx, r.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("get transacao: %w", err)
			}
			return nil
		}

		now := s.now()
		entry, err := lifecycle.Confirm(r, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateRegistroState(ctx, r); err != nil {
			return fmt.Errorf("update registro: %w", err)
		}

		t = &models.TransacaoBlockchain{
			ID:              uuid.New(),
			RegistroID:      r.ID,
			TxHash:          c.TxHash,
			Network:         c.Network,
			TimestampMethod: c.TimestampMethod,
			ProofData:       c.ProofData,
			ProofURL:        sql.NullString{String: c.ProofURL, Valid: c.ProofURL != ""},
			ConfirmedAt:     now,
		}
		if c.BlockNumber != nil {
			t.BlockNumber = sql.NullInt64{Int64: *c.BlockNumber, Valid: true}
		}
		if c.Confirmations != nil {
			t.Confirmations = sql.NullInt64{Int64: *c.Confirmations, Valid: true}
		}
		if err := tx.InsertTransacao(ctx, t); err != nil {
			return storeErr(err, "transacao")
		}

		entry.ID = uuid.New()
		if err := tx.InsertProcessingLog(ctx, entry); err != nil {
			return err
		}

		_, err = s.credits.ApplyInTx(ctx, tx, CreditMutation{
			UserID:        r.UserID,
			Operation:     models.OperationConsume,
			Amount:        CreditsPerRegistro,
			Reason:        fmt.Sprintf("registro %s confirmado", r.ID),
			ReferenceType: models.ReferenceRegistro,
			ReferenceID:   r.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if replayed {
		s.logger.Info("confirmation re-delivered for confirmed registro",
			zap.String("registro_id", r.ID.String()))
		return r, t, nil
	}

	metrics.RegistroTransitions.WithLabelValues(string(models.StatusConfirmado)).Inc()
	s.publish(ctx, r, supabase.EventRegistroConfirmed, supabase.ConfirmedPayload(t.TxHash, t.Network, t.TimestampMethod))
	s.logger.Info("registro confirmed",
		zap.String("registro_id", r.ID.String()),
		zap.String("tx_hash", t.TxHash),
		zap.String("network", t.Network),
	)
	return r, t, nil
}

// ListProcessable returns registros a worker may start, oldest first.
func (s *RegistroService) ListProcessable(ctx context.Context, limit int) ([]models.Registro, error) {
	return s.registros.ListProcessable(ctx, lifecycle.MaxAttempts, limit)
}

// publish is best effort: a lost realtime event never undoes a commit.
func (s *RegistroService) publish(ctx context.Context, r *models.Registro, event string, payload map[string]any) {
	if err := s.events.Publish(ctx, r.ID, r.UserID, event, payload); err != nil {
		s.logger.Warn("failed to publish registro event",
			zap.String("registro_id", r.ID.String()),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
