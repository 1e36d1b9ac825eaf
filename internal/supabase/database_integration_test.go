package supabase_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/database"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/services"
	"webmarcas-backend/internal/store"
	"webmarcas-backend/internal/supabase"
)

const (
	emptyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	abcHash   = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
)

// setupTestDB starts PostgreSQL in a container and applies the migrations.
func setupTestDB(t *testing.T) *supabase.DatabaseClient {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("webmarcas_test"),
		postgres.WithUsername("webmarcas"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := database.NewMigrator(dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Run())
	require.NoError(t, migrator.Close())

	db, err := supabase.NewDatabaseClient(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type pgEnv struct {
	db        *supabase.DatabaseClient
	credits   *services.CreditService
	registros *services.RegistroService
}

func newPGEnv(t *testing.T) *pgEnv {
	db := setupTestDB(t)
	credits := services.NewCreditService(db, db, nil, nil)
	return &pgEnv{
		db:        db,
		credits:   credits,
		registros: services.NewRegistroService(db, db, db, credits, nil, nil, nil),
	}
}

func (e *pgEnv) createRegistro(t *testing.T, user uuid.UUID, hash string) *models.Registro {
	t.Helper()
	r, err := e.registros.Create(context.Background(), services.CreateRegistroInput{
		UserID:    user,
		NomeAtivo: "Marca Teste",
		TipoAtivo: "logotipo",
		Hash:      hash,
	})
	require.NoError(t, err)
	return r
}

func TestDatabaseClient_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestDatabaseClient_LifecycleAndLedger(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.credits.Add(ctx, user, 2, "purchase", models.ReferencePayment, "pay_1")
	require.NoError(t, err)

	r := env.createRegistro(t, user, emptyHash)

	_, err = env.registros.CommitStart(ctx, r.ID)
	require.NoError(t, err)
	confirmed, tr, err := env.registros.CommitConfirmation(ctx, r.ID, services.Confirmation{
		TxHash:          "f1d2d2f9",
		Network:         models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp,
		ProofData:       "AE9wZW5UaW1lc3RhbXBz",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmado, confirmed.Status)

	// A replayed confirmation keeps the first transaction and debit.
	_, replay, err := env.registros.CommitConfirmation(ctx, r.ID, services.Confirmation{
		TxHash:          "other",
		Network:         models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp,
	})
	require.NoError(t, err)
	assert.Equal(t, tr.ID, replay.ID)

	balance, err := env.credits.GetBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	entries, err := env.credits.ListEntries(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.OperationConsume, entries[0].Operation, "newest first")
	assert.Equal(t, 1, entries[0].BalanceAfter)

	found, foundTr, err := env.db.FindConfirmedByHash(ctx, emptyHash)
	require.NoError(t, err)
	assert.Equal(t, r.ID, found.ID)
	assert.Equal(t, "f1d2d2f9", foundTr.TxHash)

	logs, err := env.db.ListProcessingLogs(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)

	result, err := env.credits.Reconcile(ctx, user)
	require.NoError(t, err)
	assert.False(t, result.Repaired)
	assert.Equal(t, 1, result.LedgerSum)
}

func TestDatabaseClient_UniqueIndexBlocksLiveDuplicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := uuid.New()
	now := time.Now().UTC()

	first := &models.Registro{ID: uuid.New(), UserID: user, NomeAtivo: "a", TipoAtivo: "b",
		HashSHA256: abcHash, Status: models.StatusPendente, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateRegistro(ctx, first))

	dup := *first
	dup.ID = uuid.New()
	assert.ErrorIs(t, db.CreateRegistro(ctx, &dup), store.ErrConflict)

	// Another user may register the same content.
	other := *first
	other.ID = uuid.New()
	other.UserID = uuid.New()
	assert.NoError(t, db.CreateRegistro(ctx, &other))
}

func TestDatabaseClient_InsufficientCreditsRollsBack(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.credits.Add(ctx, user, 1, "purchase", models.ReferencePayment, "pay_2")
	require.NoError(t, err)
	r := env.createRegistro(t, user, emptyHash)
	_, err = env.credits.Expire(ctx, user, 1, "expired")
	require.NoError(t, err)

	_, err = env.registros.CommitStart(ctx, r.ID)
	require.NoError(t, err)
	_, _, err = env.registros.CommitConfirmation(ctx, r.ID, services.Confirmation{
		TxHash:          "f1d2d2f9",
		Network:         models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp,
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredits)

	_, err = env.db.GetTransacao(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	stored, err := env.db.GetRegistro(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessando, stored.Status)
}

func TestDatabaseClient_MonitorCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	stuck := &models.Registro{ID: uuid.New(), UserID: uuid.New(), NomeAtivo: "a", TipoAtivo: "b",
		HashSHA256: emptyHash, Status: models.StatusProcessando, AttemptNumber: 1}
	require.NoError(t, db.CreateRegistro(ctx, stuck))

	// The database stamps updated_at, so look from a moment in the future.
	n, err := db.CountStuckRegistros(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fresh, err := db.CountStuckRegistros(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, fresh)

	pending, err := db.CountRegistrosByStatus(ctx, models.StatusPendente)
	require.NoError(t, err)
	assert.Zero(t, pending)

	negative, err := db.CountNegativeBalances(ctx)
	require.NoError(t, err)
	assert.Zero(t, negative)
}

func TestDatabaseClient_ListProcessableSkipsShadowedFailures(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.credits.Add(ctx, user, 2, "purchase", models.ReferencePayment, "pay_3")
	require.NoError(t, err)
	old := env.createRegistro(t, user, emptyHash)
	_, err = env.registros.CommitStart(ctx, old.ID)
	require.NoError(t, err)
	_, err = env.registros.CommitFailure(ctx, old.ID, "calendar unavailable")
	require.NoError(t, err)

	list, err := env.db.ListProcessable(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, old.ID, list[0].ID)

	again := env.createRegistro(t, user, emptyHash)
	list, err = env.db.ListProcessable(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, again.ID, list[0].ID)
}

func TestDatabaseClient_ReopenFailedWebhookLog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	l := &models.WebhookLog{ID: uuid.New(), Provider: "payments", EventID: "pay_9:PAYMENT_CONFIRMED",
		EventType: "PAYMENT_CONFIRMED", Payload: []byte(`{"id":"pay_9"}`), CreatedAt: time.Now().UTC()}
	require.NoError(t, db.InsertWebhookLog(ctx, l))
	require.NoError(t, db.UpdateWebhookLogResult(ctx, l.ID, false, "connection reset"))

	id, err := db.ReopenFailedWebhookLog(ctx, l.Provider, l.EventID, nil)
	require.NoError(t, err)
	assert.Equal(t, l.ID, id)

	require.NoError(t, db.UpdateWebhookLogResult(ctx, id, true, ""))
	_, err = db.ReopenFailedWebhookLog(ctx, l.Provider, l.EventID, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
