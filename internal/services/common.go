package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/store"
)

// EventPublisher pushes registro events to subscribed clients.
// supabase.RealtimeClient implements it.
type EventPublisher interface {
	Publish(ctx context.Context, registroID, userID uuid.UUID, event string, payload map[string]any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, uuid.UUID, uuid.UUID, string, map[string]any) error {
	return nil
}

// Clock returns the current time; services take one so tests can pin it.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return c
}

// storeErr classifies store sentinels for the HTTP layer.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict("%s already exists", what)
	default:
		return err
	}
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
