// Package store declares the persistence contracts used by the services.
// supabase.DatabaseClient implements them on Postgres; testutil.MemStore
// implements them in memory for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"webmarcas-backend/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// TxRunner runs fn inside one database transaction. fn's error rolls the
// transaction back; nil commits it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes that must happen atomically. Lock* methods take a
// row lock held until the transaction ends.
type Tx interface {
	LockRegistro(ctx context.Context, id uuid.UUID) (*models.Registro, error)
	UpdateRegistroState(ctx context.Context, r *models.Registro) error
	InsertTransacao(ctx context.Context, t *models.TransacaoBlockchain) error
	GetTransacao(ctx context.Context, registroID uuid.UUID) (*models.TransacaoBlockchain, error)
	InsertProcessingLog(ctx context.Context, l *models.ProcessingLogEntry) error

	// LockCredits returns the user's cached balance row, creating it with a
	// zero balance when absent.
	LockCredits(ctx context.Context, userID uuid.UUID) (*models.Credits, error)
	SetAvailableCredits(ctx context.Context, userID uuid.UUID, balance int, at time.Time) error
	SumLedger(ctx context.Context, userID uuid.UUID) (int, error)
	FindLedgerByReference(ctx context.Context, userID uuid.UUID, op models.LedgerOperation, refType, refID string) (*models.CreditLedgerEntry, error)
	InsertLedgerEntry(ctx context.Context, e *models.CreditLedgerEntry) error
}

type RegistroStore interface {
	CreateRegistro(ctx context.Context, r *models.Registro) error
	GetRegistro(ctx context.Context, id uuid.UUID) (*models.Registro, error)
	ListRegistros(ctx context.Context, userID uuid.UUID, limit int) ([]models.Registro, error)
	// FindActiveRegistroByHash returns the user's registro with hash whose
	// status is not falhou, or ErrNotFound.
	FindActiveRegistroByHash(ctx context.Context, userID uuid.UUID, hash string) (*models.Registro, error)
	// FindConfirmedByHash returns the earliest confirmed registro with hash,
	// across all users, with its transaction when one exists.
	FindConfirmedByHash(ctx context.Context, hash string) (*models.Registro, *models.TransacaoBlockchain, error)
	ListProcessable(ctx context.Context, maxAttempts, limit int) ([]models.Registro, error)
	GetTransacao(ctx context.Context, registroID uuid.UUID) (*models.TransacaoBlockchain, error)
	ListProcessingLogs(ctx context.Context, registroID uuid.UUID) ([]models.ProcessingLogEntry, error)
}

type LedgerStore interface {
	GetCredits(ctx context.Context, userID uuid.UUID) (*models.Credits, error)
	ListLedgerEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error)
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error
}

type AlertStore interface {
	InsertAlert(ctx context.Context, a *models.Alert) error
	ListAlerts(ctx context.Context, limit int, level models.AlertLevel) ([]models.Alert, error)
}

type WebhookStore interface {
	// InsertWebhookLog returns ErrConflict when (provider, event_id) was
	// already logged.
	InsertWebhookLog(ctx context.Context, l *models.WebhookLog) error
	// ReopenFailedWebhookLog clears the error of an unsuccessful delivery of
	// (provider, event_id) and returns its id. It returns ErrNotFound when
	// the stored delivery succeeded.
	ReopenFailedWebhookLog(ctx context.Context, provider, eventID string, payload []byte) (uuid.UUID, error)
	UpdateWebhookLogResult(ctx context.Context, id uuid.UUID, success bool, errMsg string) error
}

// MonitorStore exposes the aggregates read by the health monitor.
type MonitorStore interface {
	CountStuckRegistros(ctx context.Context, updatedBefore time.Time) (int, error)
	CountRegistrosCreatedSince(ctx context.Context, since time.Time) (total, failed int, err error)
	CountWebhookErrorsSince(ctx context.Context, since time.Time) (int, error)
	CountRegistrosByStatus(ctx context.Context, status models.RegistroStatus) (int, error)
	CountFailedAttemptsSince(ctx context.Context, since time.Time) (int, error)
	CountNegativeBalances(ctx context.Context) (int, error)
}
