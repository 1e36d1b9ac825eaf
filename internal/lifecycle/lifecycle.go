// Package lifecycle holds the transition rules of a registro:
//
//	pendente → processando → confirmado
//	                       ↘ falhou → processando (while attempts remain)
//
// confirmado is terminal. The functions here mutate an in-memory Registro
// only; persisting the result atomically is the caller's job.
package lifecycle

import (
	"database/sql"
	"fmt"
	"time"

	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/models"
)

// MaxAttempts is the number of failed anchoring attempts after which a
// registro is definitively failed.
const MaxAttempts = 3

const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeTerminalState     = "TERMINAL_STATE"
	CodeRetryExhausted    = "RETRY_EXHAUSTED"
)

var validTransitions = map[models.RegistroStatus]map[models.RegistroStatus]bool{
	models.StatusPendente:    {models.StatusProcessando: true},
	models.StatusProcessando: {models.StatusConfirmado: true, models.StatusFalhou: true},
	models.StatusFalhou:      {models.StatusProcessando: true},
	models.StatusConfirmado:  {},
}

// TransitionError explains why a transition was refused.
type TransitionError struct {
	Code string
	From models.RegistroStatus
	To   models.RegistroStatus
}

func (e *TransitionError) Error() string {
	switch e.Code {
	case CodeTerminalState:
		return fmt.Sprintf("registro is %s and accepts no further transitions", e.From)
	case CodeRetryExhausted:
		return fmt.Sprintf("registro failed %d times and will not be retried", MaxAttempts)
	default:
		return fmt.Sprintf("transition %s → %s is not allowed", e.From, e.To)
	}
}

// Unwrap classifies the error for the HTTP layer.
func (e *TransitionError) Unwrap() error {
	if e.Code == CodeRetryExhausted {
		return apperr.DefinitiveFailure("%s", e.Error())
	}
	return apperr.InvalidTransition("%s", e.Error())
}

// IsDefinitiveFailure reports whether r exhausted its retry budget.
func IsDefinitiveFailure(r *models.Registro) bool {
	return r.Status == models.StatusFalhou && r.AttemptNumber >= MaxAttempts
}

// IsProcessable reports whether a worker may pick r up.
func IsProcessable(r *models.Registro) bool {
	return CanTransition(r, models.StatusProcessando)
}

// CanTransition reports whether r may move to target.
func CanTransition(r *models.Registro, target models.RegistroStatus) bool {
	return check(r, target) == nil
}

func check(r *models.Registro, target models.RegistroStatus) error {
	if r.Status == models.StatusConfirmado {
		return &TransitionError{Code: CodeTerminalState, From: r.Status, To: target}
	}
	if !validTransitions[r.Status][target] {
		return &TransitionError{Code: CodeInvalidTransition, From: r.Status, To: target}
	}
	if r.Status == models.StatusFalhou && target == models.StatusProcessando && r.AttemptNumber >= MaxAttempts {
		return &TransitionError{Code: CodeRetryExhausted, From: r.Status, To: target}
	}
	return nil
}

// Start moves r into processando.
func Start(r *models.Registro, now time.Time) error {
	if err := check(r, models.StatusProcessando); err != nil {
		return err
	}
	r.Status = models.StatusProcessando
	r.UpdatedAt = now
	return nil
}

// Fail moves r into falhou, consuming one attempt. The returned log entry
// records the failed attempt.
func Fail(r *models.Registro, reason string, now time.Time) (*models.ProcessingLogEntry, error) {
	if err := check(r, models.StatusFalhou); err != nil {
		return nil, err
	}
	r.Status = models.StatusFalhou
	r.AttemptNumber++
	r.ErrorMessage = sql.NullString{String: reason, Valid: reason != ""}
	r.UpdatedAt = now
	return &models.ProcessingLogEntry{
		RegistroID:    r.ID,
		AttemptNumber: r.AttemptNumber,
		Success:       false,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     now,
	}, nil
}

// Confirm moves r into confirmado. The returned log entry records the
// successful attempt; attempt_number itself only counts failures.
func Confirm(r *models.Registro, now time.Time) (*models.ProcessingLogEntry, error) {
	if err := check(r, models.StatusConfirmado); err != nil {
		return nil, err
	}
	r.Status = models.StatusConfirmado
	r.ErrorMessage = sql.NullString{}
	r.UpdatedAt = now
	return &models.ProcessingLogEntry{
		RegistroID:    r.ID,
		AttemptNumber: r.AttemptNumber + 1,
		Success:       true,
		CreatedAt:     now,
	}, nil
}
