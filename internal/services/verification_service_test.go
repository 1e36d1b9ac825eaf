package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/models"
)

func TestMethodLabel(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{models.MethodOpenTimestamp, "OpenTimestamps (Bitcoin Blockchain)"},
		{models.MethodByteStamp, "ByteStamp"},
		{models.MethodInternal, "Sistema interno WebMarcas"},
		{"", "Sistema interno WebMarcas"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, MethodLabel(tt.method))
		})
	}
}

func TestVerificationService_ConfirmedHash(t *testing.T) {
	env := newTestEnv(t)
	r := env.seedRegistro(uuid.New(), emptyHash, models.StatusConfirmado, 0)
	confirmedAt := env.clock.Now().Add(time.Minute)
	env.store.SeedTransacao(models.TransacaoBlockchain{
		RegistroID:      r.ID,
		TxHash:          "abc123",
		Network:         models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp,
		ConfirmedAt:     confirmedAt,
	})
	svc := NewVerificationService(env.store, 16, time.Minute, nil)

	resp, err := svc.Verify(context.Background(), strings.ToUpper(emptyHash))
	require.NoError(t, err)

	assert.True(t, resp.Verified)
	assert.Equal(t, "Marca Teste", resp.AssetName)
	assert.Equal(t, "logotipo", resp.AssetType)
	assert.Equal(t, LabelOpenTimestamps, resp.Method)
	assert.Equal(t, models.NetworkBitcoin, resp.Network)
	assert.Equal(t, "abc123", resp.TxHash)
	require.NotNil(t, resp.ConfirmedAt)
	assert.True(t, confirmedAt.Equal(*resp.ConfirmedAt))
	assert.Equal(t, MessageVerified, resp.Message)
}

func TestVerificationService_UnknownHash(t *testing.T) {
	env := newTestEnv(t)
	svc := NewVerificationService(env.store, 16, time.Minute, nil)

	resp, err := svc.Verify(context.Background(), strings.Repeat("0", 64))
	require.NoError(t, err)

	assert.False(t, resp.Verified)
	assert.Empty(t, resp.AssetName)
	assert.Equal(t, MessageNotVerified, resp.Message)
}

func TestVerificationService_UnconfirmedIsNotVerified(t *testing.T) {
	env := newTestEnv(t)
	env.seedRegistro(uuid.New(), emptyHash, models.StatusProcessando, 0)
	svc := NewVerificationService(env.store, 16, time.Minute, nil)

	resp, err := svc.Verify(context.Background(), emptyHash)
	require.NoError(t, err)

	assert.False(t, resp.Verified)
}

func TestVerificationService_InvalidHash(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailOn("FindConfirmedByHash", assert.AnError)
	svc := NewVerificationService(env.store, 16, time.Minute, nil)

	for _, hash := range []string{"", "abc", strings.Repeat("g", 64), strings.Repeat("a", 65)} {
		_, err := svc.Verify(context.Background(), hash)
		assert.ErrorIs(t, err, apperr.ErrValidation, "hash %q", hash)
	}
}

func TestVerificationService_ConfirmedWithoutTransaction(t *testing.T) {
	env := newTestEnv(t)
	env.seedRegistro(uuid.New(), emptyHash, models.StatusConfirmado, 0)
	svc := NewVerificationService(env.store, 16, time.Minute, nil)

	resp, err := svc.Verify(context.Background(), emptyHash)
	require.NoError(t, err)

	assert.True(t, resp.Verified)
	assert.Equal(t, LabelInternal, resp.Method)
	assert.Nil(t, resp.ConfirmedAt)
}

func TestVerificationService_CachesPositiveAnswersOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRegistro(uuid.New(), emptyHash, models.StatusConfirmado, 0)
	svc := NewVerificationService(env.store, 16, time.Minute, nil)

	_, err := svc.Verify(ctx, emptyHash)
	require.NoError(t, err)
	miss, err := svc.Verify(ctx, abcHash)
	require.NoError(t, err)
	assert.False(t, miss.Verified)

	env.store.FailOn("FindConfirmedByHash", assert.AnError)

	cached, err := svc.Verify(ctx, emptyHash)
	require.NoError(t, err, "confirmed answers come from the cache")
	assert.True(t, cached.Verified)

	_, err = svc.Verify(ctx, abcHash)
	assert.ErrorIs(t, err, assert.AnError, "negative answers are looked up again")
}
