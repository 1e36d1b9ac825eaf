package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/fingerprint"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/metrics"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/opentimestamps"
)

// Stamper submits a digest for timestamping. opentimestamps.Client
// implements it.
type Stamper interface {
	Stamp(ctx context.Context, digest []byte) (*opentimestamps.Stamp, error)
}

// ProofUploader stores a proof file and returns its URL.
// supabase.StorageClient implements it.
type ProofUploader interface {
	UploadProof(ctx context.Context, userID, registroID uuid.UUID, proof []byte) (string, error)
}

// AnchorReport summarizes one ProcessPending run.
type AnchorReport struct {
	Picked    int
	Confirmed int
	Failed    int
	Skipped   int
}

// AnchorService is the in-process anchoring worker: it moves registros
// through processando to confirmado or falhou using OpenTimestamps.
type AnchorService struct {
	registros *RegistroService
	stamper   Stamper
	uploader  ProofUploader
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAnchorService builds the worker. uploader may be nil, in which case the
// proof is only kept in proof_data.
func NewAnchorService(registros *RegistroService, stamper Stamper, uploader ProofUploader, timeout time.Duration, log *zap.Logger) *AnchorService {
	return &AnchorService{
		registros: registros,
		stamper:   stamper,
		uploader:  uploader,
		timeout:   timeout,
		logger:    logger.OrNop(log),
	}
}

// ProcessPending anchors up to batch registros, oldest first. Errors of a
// single registro are recorded on it and do not abort the batch.
func (s *AnchorService) ProcessPending(ctx context.Context, batch int) (AnchorReport, error) {
	var report AnchorReport

	pending, err := s.registros.ListProcessable(ctx, batch)
	if err != nil {
		return report, fmt.Errorf("list processable registros: %w", err)
	}
	report.Picked = len(pending)

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch s.anchorOne(ctx, pending[i].ID) {
		case anchorConfirmed:
			report.Confirmed++
		case anchorFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	if report.Picked > 0 {
		s.logger.Info("anchoring batch finished",
			zap.Int("picked", report.Picked),
			zap.Int("confirmed", report.Confirmed),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
	}
	return report, nil
}

type anchorOutcome int

const (
	anchorSkipped anchorOutcome = iota
	anchorConfirmed
	anchorFailed
)

// anchorOne processes one registro end to end.
func (s *AnchorService) anchorOne(ctx context.Context, id uuid.UUID) anchorOutcome {
	log := s.logger.With(zap.String("registro_id", id.String()))

	r, err := s.registros.CommitStart(ctx, id)
	if err != nil {
		// Another worker took it, or it left the processable states meanwhile.
		log.Debug("registro not started", zap.Error(err))
		metrics.AnchorAttempts.WithLabelValues("skipped").Inc()
		return anchorSkipped
	}

	confirmation, err := s.stamp(ctx, r)
	if err != nil {
		s.fail(ctx, log, id, fmt.Sprintf("anchoring failed: %v", err))
		return anchorFailed
	}

	if _, _, err := s.registros.CommitConfirmation(ctx, id, *confirmation); err != nil {
		reason := fmt.Sprintf("confirmation failed: %v", err)
		if errors.Is(err, apperr.ErrInsufficientCredits) {
			reason = "insufficient credits to confirm registro"
		}
		s.fail(ctx, log, id, reason)
		return anchorFailed
	}

	metrics.AnchorAttempts.WithLabelValues("confirmed").Inc()
	return anchorConfirmed
}

func (s *AnchorService) stamp(ctx context.Context, r *models.Registro) (*Confirmation, error) {
	digest, err := fingerprint.Digest(r.HashSHA256)
	if err != nil {
		return nil, err
	}

	stampCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		stampCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stamp, err := s.stamper.Stamp(stampCtx, digest)
	if err != nil {
		return nil, err
	}

	proof := stamp.Proof()
	sum := sha256.Sum256(proof)
	c := &Confirmation{
		TxHash:          hex.EncodeToString(sum[:]),
		Network:         models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp,
		ProofData:       base64.StdEncoding.EncodeToString(proof),
	}

	if s.uploader != nil {
		url, err := s.uploader.UploadProof(ctx, r.UserID, r.ID, proof)
		if err != nil {
			s.logger.Warn("proof upload failed, keeping inline proof only",
				zap.String("registro_id", r.ID.String()), zap.Error(err))
		} else {
			c.ProofURL = url
		}
	}
	return c, nil
}

func (s *AnchorService) fail(ctx context.Context, log *zap.Logger, id uuid.UUID, reason string) {
	metrics.AnchorAttempts.WithLabelValues("failed").Inc()
	// The failure must be recorded even when the run's context expired,
	// otherwise the registro would stay in processando.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := s.registros.CommitFailure(commitCtx, id, reason); err != nil {
		log.Error("failed to record anchoring failure", zap.String("reason", reason), zap.Error(err))
	}
}
