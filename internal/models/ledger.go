package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type LedgerOperation string

const (
	OperationAdd     LedgerOperation = "ADD"
	OperationConsume LedgerOperation = "CONSUME"
	OperationRefund  LedgerOperation = "REFUND"
	OperationAdjust  LedgerOperation = "ADJUST"
	OperationExpire  LedgerOperation = "EXPIRE"
)

// Reference types used as idempotency keys on ledger entries.
const (
	ReferenceRegistro = "registro"
	ReferencePayment  = "payment"
	ReferenceManual   = "manual"
)

// Credits is the cached balance row. AvailableCredits must always equal the
// latest BalanceAfter in the user's ledger.
type Credits struct {
	UserID           uuid.UUID
	AvailableCredits int
	UpdatedAt        time.Time
}

type CreditLedgerEntry struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Operation     LedgerOperation
	Amount        int
	BalanceAfter  int
	Reason        string
	ReferenceType sql.NullString
	ReferenceID   sql.NullString
	ActorID       uuid.NullUUID
	CreatedAt     time.Time
}
