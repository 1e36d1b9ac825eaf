package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarn     AlertLevel = "WARN"
	AlertError    AlertLevel = "ERROR"
	AlertCritical AlertLevel = "CRITICAL"
)

// IsSevere reports whether the level makes the system unhealthy.
func (l AlertLevel) IsSevere() bool {
	return l == AlertError || l == AlertCritical
}

func (l AlertLevel) Valid() bool {
	switch l {
	case AlertInfo, AlertWarn, AlertError, AlertCritical:
		return true
	}
	return false
}

type Alert struct {
	ID        uuid.UUID       `json:"id"`
	Level     AlertLevel      `json:"level"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Service   string          `json:"service"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type WebhookLog struct {
	ID           uuid.UUID
	Provider     string
	EventID      string
	EventType    string
	Payload      json.RawMessage
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}
