package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/testutil"
)

type testEnv struct {
	store     *testutil.MemStore
	clock     *testutil.Clock
	events    *testutil.RecordingPublisher
	credits   *CreditService
	registros *RegistroService
	alerts    *AlertService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := testutil.NewClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	st := testutil.NewMemStore()
	st.Now = clock.Now
	events := &testutil.RecordingPublisher{}

	credits := NewCreditService(st, st, nil, clock.Now)
	return &testEnv{
		store:     st,
		clock:     clock,
		events:    events,
		credits:   credits,
		registros: NewRegistroService(st, st, st, credits, events, nil, clock.Now),
		alerts:    NewAlertService(st, nil, clock.Now),
	}
}

const (
	emptyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	abcHash   = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
)

// seedRegistro stores a registro for user in the given state.
func (e *testEnv) seedRegistro(user uuid.UUID, hash string, status models.RegistroStatus, attempts int) models.Registro {
	return e.store.SeedRegistro(models.Registro{
		UserID:        user,
		NomeAtivo:     "Marca Teste",
		TipoAtivo:     "logotipo",
		HashSHA256:    hash,
		Status:        status,
		AttemptNumber: attempts,
		CreatedAt:     e.clock.Now(),
	})
}

func confirmation() Confirmation {
	return Confirmation{
		TxHash:          "f1d2d2f924e986ac86fdf7b36c94bcdf32beec15",
		Network:         models.NetworkBitcoin,
		TimestampMethod: models.MethodOpenTimestamp,
		ProofData:       "AE9wZW5UaW1lc3RhbXBz",
	}
}
