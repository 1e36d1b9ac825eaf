package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/lifecycle"
	"webmarcas-backend/internal/models"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newRegistro(status models.RegistroStatus, attempts int) *models.Registro {
	return &models.Registro{ID: uuid.New(), UserID: uuid.New(), Status: status, AttemptNumber: attempts}
}

func TestTransitionMatrix(t *testing.T) {
	all := []models.RegistroStatus{
		models.StatusPendente, models.StatusProcessando, models.StatusConfirmado, models.StatusFalhou,
	}
	allowed := map[models.RegistroStatus][]models.RegistroStatus{
		models.StatusPendente:    {models.StatusProcessando},
		models.StatusProcessando: {models.StatusConfirmado, models.StatusFalhou},
		models.StatusFalhou:      {models.StatusProcessando},
		models.StatusConfirmado:  nil,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			got := lifecycle.CanTransition(newRegistro(from, 0), to)
			assert.Equal(t, want, got, "%s → %s", from, to)
		}
	}
}

func TestConfirmadoIsTerminal(t *testing.T) {
	r := newRegistro(models.StatusConfirmado, 0)

	for _, target := range []models.RegistroStatus{models.StatusPendente, models.StatusProcessando, models.StatusFalhou, models.StatusConfirmado} {
		err := lifecycle.Start(r, now)
		require.Error(t, err)

		var te *lifecycle.TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, lifecycle.CodeTerminalState, te.Code)
		assert.False(t, lifecycle.CanTransition(r, target))
	}
	_, err := lifecycle.Fail(r, "boom", now)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Equal(t, models.StatusConfirmado, r.Status)
}

func TestRetryBudget(t *testing.T) {
	r := newRegistro(models.StatusPendente, 0)

	for attempt := 1; attempt <= lifecycle.MaxAttempts; attempt++ {
		require.NoError(t, lifecycle.Start(r, now), "attempt %d", attempt)
		log, err := lifecycle.Fail(r, "calendar timeout", now)
		require.NoError(t, err)
		assert.Equal(t, attempt, r.AttemptNumber)
		assert.Equal(t, attempt, log.AttemptNumber)
		assert.False(t, log.Success)
	}

	assert.True(t, lifecycle.IsDefinitiveFailure(r))
	assert.False(t, lifecycle.IsProcessable(r))

	err := lifecycle.Start(r, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDefinitiveFailure))
	assert.Equal(t, models.StatusFalhou, r.Status)
	assert.Equal(t, "calendar timeout", r.ErrorMessage.String)
}

func TestConfirmAfterRetry(t *testing.T) {
	r := newRegistro(models.StatusFalhou, 2)
	r.ErrorMessage.String, r.ErrorMessage.Valid = "timeout", true

	require.NoError(t, lifecycle.Start(r, now))
	log, err := lifecycle.Confirm(r, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmado, r.Status)
	assert.False(t, r.ErrorMessage.Valid)
	assert.Equal(t, 2, r.AttemptNumber)
	assert.Equal(t, 3, log.AttemptNumber)
	assert.True(t, log.Success)
}

func TestConfirmRequiresProcessando(t *testing.T) {
	r := newRegistro(models.StatusPendente, 0)

	_, err := lifecycle.Confirm(r, now)

	var te *lifecycle.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, lifecycle.CodeInvalidTransition, te.Code)
	assert.Equal(t, models.StatusPendente, r.Status)
}
