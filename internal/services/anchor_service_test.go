package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/lifecycle"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/opentimestamps"
	"webmarcas-backend/internal/testutil"
)

func TestAnchorService_ConfirmsPendingRegistro(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.store.SeedCredits(user, 1)
	r := env.seedRegistro(user, emptyHash, models.StatusPendente, 0)

	stamper := &testutil.FakeStamper{Response: []byte{0xf0, 0x10, 0x01}}
	uploader := &testutil.FakeUploader{}
	anchor := NewAnchorService(env.registros, stamper, uploader, 0, nil)

	report, err := anchor.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, AnchorReport{Picked: 1, Confirmed: 1}, report)

	require.Len(t, stamper.Digests, 1)
	assert.Equal(t, emptyHash, hex.EncodeToString(stamper.Digests[0]))

	proof := (&opentimestamps.Stamp{Digest: stamper.Digests[0], Response: stamper.Response}).Proof()
	assert.Equal(t, proof, uploader.Proofs[r.ID])

	status, err := env.registros.Status(ctx, user, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmado, status.Registro.Status)
	require.NotNil(t, status.Transacao)
	sum := sha256.Sum256(proof)
	assert.Equal(t, hex.EncodeToString(sum[:]), status.Transacao.TxHash)
	assert.Equal(t, models.NetworkBitcoin, status.Transacao.Network)
	assert.Equal(t, models.MethodOpenTimestamp, status.Transacao.TimestampMethod)
	assert.Equal(t, base64.StdEncoding.EncodeToString(proof), status.Transacao.ProofData)
	assert.Contains(t, status.Transacao.ProofURL.String, r.ID.String())
	assert.Equal(t, 0, env.store.Balance(user))
}

func TestAnchorService_StampFailureConsumesAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.store.SeedCredits(user, 1)
	r := env.seedRegistro(user, emptyHash, models.StatusPendente, 0)
	anchor := NewAnchorService(env.registros, &testutil.FakeStamper{Err: assert.AnError}, nil, 0, nil)

	report, err := anchor.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	stored, err := env.store.GetRegistro(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFalhou, stored.Status)
	assert.Equal(t, 1, stored.AttemptNumber)
	assert.Contains(t, stored.ErrorMessage.String, "anchoring failed")
	assert.Equal(t, 1, env.store.Balance(user), "failed attempts cost nothing")
}

func TestAnchorService_StopsAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.seedRegistro(uuid.New(), emptyHash, models.StatusPendente, 0)
	stamper := &testutil.FakeStamper{Err: assert.AnError}
	anchor := NewAnchorService(env.registros, stamper, nil, 0, nil)

	for i := 0; i < lifecycle.MaxAttempts+2; i++ {
		_, err := anchor.ProcessPending(ctx, 10)
		require.NoError(t, err)
	}

	assert.Len(t, stamper.Digests, lifecycle.MaxAttempts)
	stored, _ := env.store.GetRegistro(ctx, r.ID)
	assert.Equal(t, models.StatusFalhou, stored.Status)
	assert.Equal(t, lifecycle.MaxAttempts, stored.AttemptNumber)
}

func TestAnchorService_InsufficientCreditsFailsRegistro(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.seedRegistro(uuid.New(), emptyHash, models.StatusPendente, 0)
	anchor := NewAnchorService(env.registros, &testutil.FakeStamper{}, nil, 0, nil)

	report, err := anchor.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	stored, _ := env.store.GetRegistro(ctx, r.ID)
	assert.Equal(t, models.StatusFalhou, stored.Status)
	assert.Equal(t, "insufficient credits to confirm registro", stored.ErrorMessage.String)
	assert.Zero(t, env.store.TransacaoCount(r.ID))
}

func TestAnchorService_UploadFailureKeepsInlineProof(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.store.SeedCredits(user, 1)
	r := env.seedRegistro(user, emptyHash, models.StatusPendente, 0)
	anchor := NewAnchorService(env.registros, &testutil.FakeStamper{Response: []byte{0x00}},
		&testutil.FakeUploader{Err: assert.AnError}, 0, nil)

	report, err := anchor.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Confirmed)

	tr, err := env.store.GetTransacao(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, tr.ProofURL.Valid)
	assert.NotEmpty(t, tr.ProofData)
}

func TestAnchorService_RespectsBatchSize(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	env.store.SeedCredits(user, 5)
	first := env.seedRegistro(user, emptyHash, models.StatusPendente, 0)
	env.seedRegistro(user, abcHash, models.StatusPendente, 0)
	anchor := NewAnchorService(env.registros, &testutil.FakeStamper{}, nil, 0, nil)

	report, err := anchor.ProcessPending(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, AnchorReport{Picked: 1, Confirmed: 1}, report)
	stored, _ := env.store.GetRegistro(context.Background(), first.ID)
	assert.Equal(t, models.StatusConfirmado, stored.Status, "oldest registro goes first")
}

func TestAnchorService_NothingToDo(t *testing.T) {
	env := newTestEnv(t)
	env.seedRegistro(uuid.New(), emptyHash, models.StatusConfirmado, 0)
	env.seedRegistro(uuid.New(), abcHash, models.StatusFalhou, lifecycle.MaxAttempts)
	stamper := &testutil.FakeStamper{}
	anchor := NewAnchorService(env.registros, stamper, nil, 0, nil)

	report, err := anchor.ProcessPending(context.Background(), 10)
	require.NoError(t, err)

	assert.Zero(t, report.Picked)
	assert.Empty(t, stamper.Digests)
}

func TestAnchorService_SkipsFailedRegistroWithLiveCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.store.SeedCredits(user, 1)
	old := env.seedRegistro(user, emptyHash, models.StatusFalhou, 1)
	env.clock.Advance(time.Minute)
	again := env.seedRegistro(user, emptyHash, models.StatusPendente, 0)
	anchor := NewAnchorService(env.registros, &testutil.FakeStamper{}, nil, 0, nil)

	report, err := anchor.ProcessPending(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, AnchorReport{Picked: 1, Confirmed: 1}, report)

	stored, err := env.store.GetRegistro(ctx, again.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmado, stored.Status)

	// The confirmed copy keeps the old attempt out of every later batch.
	report, err = anchor.ProcessPending(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, report.Picked)
	stored, err = env.store.GetRegistro(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFalhou, stored.Status)
}
