package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

// ProofDownloader fetches a stored proof file. supabase.StorageClient
// implements it.
type ProofDownloader interface {
	DownloadProof(ctx context.Context, userID, registroID uuid.UUID) ([]byte, error)
}

// ProofService serves the detached timestamp proof of confirmed registros.
type ProofService struct {
	registros  *RegistroService
	downloader ProofDownloader
	logger     *zap.Logger
}

// NewProofService builds the service. downloader may be nil, in which case
// only inline proofs are served.
func NewProofService(registros *RegistroService, downloader ProofDownloader, log *zap.Logger) *ProofService {
	return &ProofService{registros: registros, downloader: downloader, logger: logger.OrNop(log)}
}

// Proof returns the proof of a registro owned by userID. The inline copy in
// proof_data wins; Storage is read only when the confirmation carried a
// proof_url alone.
func (s *ProofService) Proof(ctx context.Context, userID, id uuid.UUID) ([]byte, error) {
	r, err := s.registros.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusConfirmado {
		return nil, apperr.NotFound("registro %s has no proof yet", id)
	}

	t, err := s.registros.registros.GetTransacao(ctx, r.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("registro %s has no proof", id)
		}
		return nil, fmt.Errorf("get transacao: %w", err)
	}

	if t.ProofData != "" {
		proof, err := base64.StdEncoding.DecodeString(t.ProofData)
		if err == nil {
			return proof, nil
		}
		s.logger.Warn("stored proof_data is not base64",
			zap.String("registro_id", r.ID.String()), zap.Error(err))
	}

	if s.downloader == nil || !t.ProofURL.Valid {
		return nil, apperr.NotFound("registro %s has no proof", id)
	}
	proof, err := s.downloader.DownloadProof(ctx, r.UserID, r.ID)
	if err != nil {
		return nil, fmt.Errorf("download proof: %w", err)
	}
	return proof, nil
}
