package models

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type RegistroResponse struct {
	ID            string    `json:"id"`
	NomeAtivo     string    `json:"nome_ativo"`
	TipoAtivo     string    `json:"tipo_ativo"`
	HashSHA256    string    `json:"hash_sha256"`
	Status        string    `json:"status"`
	AttemptNumber int       `json:"attempt_number"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	ProjectID     string    `json:"project_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewRegistroResponse(r *Registro) RegistroResponse {
	resp := RegistroResponse{
		ID:            r.ID.String(),
		NomeAtivo:     r.NomeAtivo,
		TipoAtivo:     r.TipoAtivo,
		HashSHA256:    r.HashSHA256,
		Status:        string(r.Status),
		AttemptNumber: r.AttemptNumber,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ErrorMessage.Valid {
		resp.ErrorMessage = r.ErrorMessage.String
	}
	if r.ProjectID.Valid {
		resp.ProjectID = r.ProjectID.UUID.String()
	}
	return resp
}

type RegistroListResponse struct {
	Registros []RegistroResponse `json:"registros"`
}

type DuplicateCheckResponse struct {
	IsDuplicate      bool              `json:"is_duplicate"`
	ExistingRegistro *RegistroResponse `json:"existing_registro,omitempty"`
}

type TransactionResponse struct {
	TxHash          string    `json:"tx_hash"`
	Network         string    `json:"network"`
	TimestampMethod string    `json:"timestamp_method"`
	ProofURL        string    `json:"proof_url,omitempty"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
	BlockNumber     *int64    `json:"block_number,omitempty"`
	Confirmations   *int64    `json:"confirmations,omitempty"`
}

func NewTransactionResponse(t *TransacaoBlockchain) *TransactionResponse {
	if t == nil {
		return nil
	}
	resp := &TransactionResponse{
		TxHash:          t.TxHash,
		Network:         t.Network,
		TimestampMethod: t.TimestampMethod,
		ConfirmedAt:     t.ConfirmedAt,
	}
	if t.ProofURL.Valid {
		resp.ProofURL = t.ProofURL.String
	}
	if t.BlockNumber.Valid {
		n := t.BlockNumber.Int64
		resp.BlockNumber = &n
	}
	if t.Confirmations.Valid {
		n := t.Confirmations.Int64
		resp.Confirmations = &n
	}
	return resp
}

type ProcessingLogResponse struct {
	AttemptNumber int       `json:"attempt_number"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type RegistroStatusResponse struct {
	Status         string                  `json:"status"`
	HashSHA256     string                  `json:"hash_sha256"`
	ErrorMessage   *string                 `json:"error_message"`
	ConfirmedAt    *time.Time              `json:"confirmed_at"`
	Transaction    *TransactionResponse    `json:"transaction"`
	ProcessingLogs []ProcessingLogResponse `json:"processingLogs"`
}

type VerifyResponse struct {
	Verified     bool       `json:"verified"`
	AssetName    string     `json:"assetName,omitempty"`
	AssetType    string     `json:"assetType,omitempty"`
	RegisteredAt *time.Time `json:"registeredAt,omitempty"`
	Method       string     `json:"method,omitempty"`
	Network      string     `json:"network,omitempty"`
	TxHash       string     `json:"txHash,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmedAt,omitempty"`
	Message      string     `json:"message"`
}

type BalanceResponse struct {
	UserID           string `json:"user_id"`
	AvailableCredits int    `json:"available_credits"`
}

type LedgerEntryResponse struct {
	ID            string    `json:"id"`
	Operation     string    `json:"operation"`
	Amount        int       `json:"amount"`
	BalanceAfter  int       `json:"balance_after"`
	Reason        string    `json:"reason"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewLedgerEntryResponse(e *CreditLedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID.String(),
		Operation:     string(e.Operation),
		Amount:        e.Amount,
		BalanceAfter:  e.BalanceAfter,
		Reason:        e.Reason,
		ReferenceType: e.ReferenceType.String,
		ReferenceID:   e.ReferenceID.String,
		CreatedAt:     e.CreatedAt,
	}
}

type LedgerResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
}

// ReconcileResult reports what a balance reconciliation found and did.
type ReconcileResult struct {
	UserID       string `json:"user_id"`
	CachedBefore int    `json:"cached_before"`
	LedgerSum    int    `json:"ledger_sum"`
	Repaired     bool   `json:"repaired"`
}

type AlertResponse struct {
	Success bool  `json:"success"`
	Alert   Alert `json:"alert"`
}

type AlertListResponse struct {
	Alerts []Alert `json:"alerts"`
}

// MonitorResult is the outcome of one health-monitor run.
type MonitorResult struct {
	ChecksPerformed []string  `json:"checks_performed"`
	AlertsTriggered []Alert   `json:"alerts_triggered"`
	SystemHealthy   bool      `json:"system_healthy"`
	CheckedAt       time.Time `json:"checked_at"`
}

type ProjectResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewProjectResponse(p *Project) ProjectResponse {
	return ProjectResponse{
		ID:             p.ID.String(),
		Name:           p.Name,
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}
