package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/testutil"
)

func TestProofService_ServesInlineProof(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	r := env.seedRegistro(user, emptyHash, models.StatusConfirmado, 0)
	env.store.SeedTransacao(models.TransacaoBlockchain{
		RegistroID: r.ID, TxHash: "f1d2", Network: models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp,
		ProofData:       base64.StdEncoding.EncodeToString([]byte("ots-proof")),
	})
	downloader := &testutil.FakeUploader{}

	proof, err := NewProofService(env.registros, downloader, nil).Proof(context.Background(), user, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("ots-proof"), proof)
}

func TestProofService_DownloadsWhenOnlyURLStored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	r := env.seedRegistro(user, emptyHash, models.StatusConfirmado, 0)
	env.store.SeedTransacao(models.TransacaoBlockchain{
		RegistroID: r.ID, TxHash: "f1d2", Network: models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp,
		ProofURL:        sql.NullString{String: "https://storage.test/proof.ots", Valid: true},
	})
	storage := &testutil.FakeUploader{}
	_, err := storage.UploadProof(ctx, user, r.ID, []byte("stored-proof"))
	require.NoError(t, err)

	proof, err := NewProofService(env.registros, storage, nil).Proof(ctx, user, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("stored-proof"), proof)

	_, err = NewProofService(env.registros, nil, nil).Proof(ctx, user, r.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "no storage configured")
}

func TestProofService_RequiresConfirmedOwnedRegistro(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	pending := env.seedRegistro(user, emptyHash, models.StatusPendente, 0)
	confirmed := env.seedRegistro(user, abcHash, models.StatusConfirmado, 0)
	env.store.SeedTransacao(models.TransacaoBlockchain{
		RegistroID: confirmed.ID, TxHash: "f1d2", Network: models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp, ProofData: "AAAA",
	})
	proofs := NewProofService(env.registros, nil, nil)

	_, err := proofs.Proof(ctx, user, pending.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = proofs.Proof(ctx, uuid.New(), confirmed.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
