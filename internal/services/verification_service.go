package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"webmarcas-backend/internal/fingerprint"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/metrics"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

const (
	LabelOpenTimestamps = "OpenTimestamps (Bitcoin Blockchain)"
	LabelByteStamp      = "ByteStamp"
	LabelInternal       = "Sistema interno WebMarcas"

	MessageVerified    = "Registro verificado: este arquivo foi registrado e ancorado em blockchain."
	MessageNotVerified = "Nenhum registro confirmado foi encontrado para este hash."
)

// MethodLabel maps a timestamp method onto its public description.
func MethodLabel(method string) string {
	switch method {
	case models.MethodOpenTimestamp:
		return LabelOpenTimestamps
	case models.MethodByteStamp:
		return LabelByteStamp
	default:
		return LabelInternal
	}
}

// VerificationService answers public hash lookups. Confirmed registros never
// change, so positive answers are cached; negative answers are not, because
// the hash may be confirmed a moment later.
type VerificationService struct {
	registros store.RegistroStore
	cache     *expirable.LRU[string, models.VerifyResponse]
	logger    *zap.Logger
}

func NewVerificationService(registros store.RegistroStore, cacheSize int, cacheTTL time.Duration, log *zap.Logger) *VerificationService {
	return &VerificationService{
		registros: registros,
		cache:     expirable.NewLRU[string, models.VerifyResponse](cacheSize, nil, cacheTTL),
		logger:    logger.OrNop(log),
	}
}

// Verify validates the hash before touching storage.
func (s *VerificationService) Verify(ctx context.Context, hash string) (*models.VerifyResponse, error) {
	normalized, err := fingerprint.Normalize(hash)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(normalized); ok {
		metrics.VerificationLookups.WithLabelValues("cache_hit").Inc()
		return &cached, nil
	}

	r, t, err := s.registros.FindConfirmedByHash(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.VerificationLookups.WithLabelValues("not_found").Inc()
			return &models.VerifyResponse{Verified: false, Message: MessageNotVerified}, nil
		}
		return nil, fmt.Errorf("verify hash: %w", err)
	}

	registeredAt := r.CreatedAt
	resp := models.VerifyResponse{
		Verified:     true,
		AssetName:    r.NomeAtivo,
		AssetType:    r.TipoAtivo,
		RegisteredAt: &registeredAt,
		Method:       LabelInternal,
		Message:      MessageVerified,
	}
	if t != nil {
		confirmedAt := t.ConfirmedAt
		resp.Method = MethodLabel(t.TimestampMethod)
		resp.Network = t.Network
		resp.TxHash = t.TxHash
		resp.ConfirmedAt = &confirmedAt
	}

	s.cache.Add(normalized, resp)
	metrics.VerificationLookups.WithLabelValues("verified").Inc()
	return &resp, nil
}
