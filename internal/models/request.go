package models

type CheckDuplicateRequest struct {
	Hash string `json:"hash" binding:"required,sha256hex" example:"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"`
}

// CreateRegistroRequest is accepted as JSON or as multipart form. In the
// multipart form the hash may be omitted and a `file` part sent instead, in
// which case the server computes the fingerprint.
type CreateRegistroRequest struct {
	NomeAtivo  string `json:"nome_ativo" form:"nome_ativo" binding:"required,max=255"`
	TipoAtivo  string `json:"tipo_ativo" form:"tipo_ativo" binding:"required,max=100"`
	HashSHA256 string `json:"hash_sha256" form:"hash_sha256" binding:"omitempty,sha256hex"`
	ProjectID  string `json:"project_id,omitempty" form:"project_id" binding:"omitempty,uuid"`
}

type VerifyRequest struct {
	Hash string `json:"hash" form:"hash"`
}

type CreditMutationRequest struct {
	UserID      string `json:"user_id" binding:"required,uuid"`
	Amount      int    `json:"amount" binding:"required"`
	Reason      string `json:"reason" binding:"required,max=500"`
	ReferenceID string `json:"reference_id,omitempty" binding:"omitempty,max=255"`
}

type AlertRequest struct {
	Level    string                 `json:"level" binding:"required,oneof=INFO WARN ERROR CRITICAL"`
	Title    string                 `json:"title" binding:"required,max=255"`
	Message  string                 `json:"message" binding:"required"`
	Service  string                 `json:"service,omitempty" binding:"omitempty,max=100"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type CreateProjectRequest struct {
	Name           string `json:"name" binding:"required,max=255"`
	DocumentType   string `json:"document_type" binding:"required,oneof=CPF CNPJ"`
	DocumentNumber string `json:"document_number" binding:"required,max=32"`
}

// ConfirmRegistroRequest is sent by an external anchoring worker.
type ConfirmRegistroRequest struct {
	TxHash          string `json:"tx_hash" binding:"required"`
	Network         string `json:"network" binding:"required,oneof=bitcoin polygon internal"`
	TimestampMethod string `json:"timestamp_method" binding:"required,oneof=OPEN_TIMESTAMP BYTESTAMP internal"`
	ProofData       string `json:"proof_data,omitempty"`
	ProofURL        string `json:"proof_url,omitempty" binding:"omitempty,url"`
	BlockNumber     *int64 `json:"block_number,omitempty"`
	Confirmations   *int64 `json:"confirmations,omitempty"`
}

type FailRegistroRequest struct {
	ErrorMessage string `json:"error_message" binding:"required"`
}

// PaymentWebhookEvent is the generic credit-purchase notification.
type PaymentWebhookEvent struct {
	ID      string `json:"id" binding:"required"`
	Event   string `json:"event" binding:"required"`
	UserID  string `json:"user_id" binding:"omitempty,uuid"`
	Credits int    `json:"credits"`
}
