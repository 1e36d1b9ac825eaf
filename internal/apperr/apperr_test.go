package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"webmarcas-backend/internal/apperr"
)

func TestDecode_ClassifiedError(t *testing.T) {
	err := fmt.Errorf("create registro: %w", apperr.Validation("hash_sha256 is required"))

	status, code, msg := apperr.Decode(err)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeValidation, code)
	assert.Equal(t, "hash_sha256 is required", msg)
}

func TestDecode_UnknownErrorIsGeneric500(t *testing.T) {
	status, code, msg := apperr.Decode(errors.New("pq: relation \"registros\" does not exist"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, apperr.CodeInternal, code)
	assert.Equal(t, "internal server error", msg)
}

func TestErrorsIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", apperr.InsufficientCredits("saldo 0, necessário 1"))

	assert.True(t, errors.Is(err, apperr.ErrInsufficientCredits))
	assert.False(t, errors.Is(err, apperr.ErrNotFound))
}
