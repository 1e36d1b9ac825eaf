package supabase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

// Registro events published to subscribers of the registro_events table.
const (
	EventRegistroCreated    = "registro.created"
	EventRegistroProcessing = "registro.processing"
	EventRegistroConfirmed  = "registro.confirmed"
	EventRegistroFailed     = "registro.failed"
)

// RealtimeClient publishes registro events by inserting rows into
// registro_events; Supabase Realtime broadcasts the inserts to clients
// subscribed to postgres changes on that table, filtered by user_id.
type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

type registroEventRow struct {
	RegistroID string         `json:"registro_id"`
	UserID     string         `json:"user_id"`
	Event      string         `json:"event"`
	Payload    map[string]any `json:"payload"`
}

func (r *RealtimeClient) Publish(ctx context.Context, registroID, userID uuid.UUID, event string, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := registroEventRow{
		RegistroID: registroID.String(),
		UserID:     userID.String(),
		Event:      event,
		Payload:    payload,
	}
	if _, _, err := r.client.From("registro_events").Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to publish %s for registro %s: %w", event, registroID, err)
	}
	return nil
}

// Event payloads
func ProcessingPayload(attempt int) map[string]any {
	return map[string]any{
		"status":         "processando",
		"attempt_number": attempt,
	}
}

func ConfirmedPayload(txHash, network, method string) map[string]any {
	return map[string]any{
		"status":           "confirmado",
		"tx_hash":          txHash,
		"network":          network,
		"timestamp_method": method,
	}
}

func FailedPayload(attempt int, errorMsg string, definitive bool) map[string]any {
	return map[string]any{
		"status":         "falhou",
		"attempt_number": attempt,
		"error":          errorMsg,
		"definitive":     definitive,
	}
}

func CreatedPayload(hash string) map[string]any {
	return map[string]any{
		"status":      "pendente",
		"hash_sha256": hash,
	}
}
