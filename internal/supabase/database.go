package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"webmarcas-backend/internal/store"
)

const uniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx so that row helpers can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DatabaseClient struct {
	db  *sql.DB
	now func() time.Time
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDatabaseClientFromDB(db), nil
}

// NewDatabaseClientFromDB wraps an already opened pool.
func NewDatabaseClientFromDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db, now: time.Now}
}

func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

// RunInTx runs fn in a read-committed transaction. Row locks taken through
// the Tx are released on commit or rollback.
func (d *DatabaseClient) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&pgTx{q: sqlTx, now: d.now}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pgTx implements store.Tx on a *sql.Tx.
type pgTx struct {
	q   querier
	now func() time.Time
}

var (
	_ store.Tx            = (*pgTx)(nil)
	_ store.TxRunner      = (*DatabaseClient)(nil)
	_ store.RegistroStore = (*DatabaseClient)(nil)
	_ store.LedgerStore   = (*DatabaseClient)(nil)
	_ store.ProjectStore  = (*DatabaseClient)(nil)
	_ store.AlertStore    = (*DatabaseClient)(nil)
	_ store.WebhookStore  = (*DatabaseClient)(nil)
	_ store.MonitorStore  = (*DatabaseClient)(nil)
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// notFound maps sql.ErrNoRows onto store.ErrNotFound, leaving other errors
// wrapped with context.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
