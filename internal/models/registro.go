package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type RegistroStatus string

const (
	StatusPendente    RegistroStatus = "pendente"
	StatusProcessando RegistroStatus = "processando"
	StatusConfirmado  RegistroStatus = "confirmado"
	StatusFalhou      RegistroStatus = "falhou"
)

// Anchoring networks and timestamp methods recorded on a TransacaoBlockchain.
const (
	NetworkBitcoin  = "bitcoin"
	NetworkPolygon  = "polygon"
	NetworkInternal = "internal"

	MethodOpenTimestamp = "OPEN_TIMESTAMP"
	MethodByteStamp     = "BYTESTAMP"
	MethodInternal      = "internal"
)

type Registro struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	ProjectID     uuid.NullUUID
	NomeAtivo     string
	TipoAtivo     string
	HashSHA256    string
	Status        RegistroStatus
	AttemptNumber int
	ErrorMessage  sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type TransacaoBlockchain struct {
	ID              uuid.UUID
	RegistroID      uuid.UUID
	TxHash          string
	Network         string
	TimestampMethod string
	ProofData       string
	ProofURL        sql.NullString
	ConfirmedAt     time.Time
	BlockNumber     sql.NullInt64
	Confirmations   sql.NullInt64
}

type ProcessingLogEntry struct {
	ID            uuid.UUID
	RegistroID    uuid.UUID
	AttemptNumber int
	Success       bool
	ErrorMessage  sql.NullString
	CreatedAt     time.Time
}
