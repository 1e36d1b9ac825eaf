package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/metrics"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

type AlertInput struct {
	Level    models.AlertLevel
	Title    string
	Message  string
	Service  string
	Metadata map[string]any
}

type AlertService struct {
	alerts store.AlertStore
	logger *zap.Logger
	now    Clock
}

func NewAlertService(alerts store.AlertStore, log *zap.Logger, now Clock) *AlertService {
	return &AlertService{alerts: alerts, logger: logger.OrNop(log), now: orNow(now)}
}

func (s *AlertService) Create(ctx context.Context, in AlertInput) (*models.Alert, error) {
	level := models.AlertLevel(strings.ToUpper(string(in.Level)))
	if !level.Valid() {
		return nil, apperr.Validation("level must be one of INFO, WARN, ERROR, CRITICAL")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, apperr.Validation("title and message are required")
	}

	alert := &models.Alert{
		ID:        uuid.New(),
		Level:     level,
		Title:     in.Title,
		Message:   in.Message,
		Service:   in.Service,
		CreatedAt: s.now(),
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, apperr.Validation("metadata must be a JSON object")
		}
		alert.Metadata = raw
	}

	if err := s.alerts.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}

	metrics.AlertsTriggered.WithLabelValues(string(alert.Level), alert.Service).Inc()
	fields := []zap.Field{
		zap.String("alert_id", alert.ID.String()),
		zap.String("level", string(alert.Level)),
		zap.String("service", alert.Service),
		zap.String("title", alert.Title),
	}
	if alert.Level.IsSevere() {
		s.logger.Error("alert recorded", fields...)
	} else {
		s.logger.Info("alert recorded", fields...)
	}
	return alert, nil
}

// List returns recent alerts, newest first. An empty level lists all levels.
func (s *AlertService) List(ctx context.Context, limit int, level string) ([]models.Alert, error) {
	lvl := models.AlertLevel(strings.ToUpper(level))
	if lvl != "" && !lvl.Valid() {
		return nil, apperr.Validation("unknown alert level %q", level)
	}
	return s.alerts.ListAlerts(ctx, clampLimit(limit), lvl)
}
