package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

// MonitorThresholds configures when each health check fires.
type MonitorThresholds struct {
	StuckAfter       time.Duration
	Window           time.Duration
	FailureMinFailed int
	FailureRateError float64
	FailureRateCrit  float64
	WebhookErrors    int
	Backlog          int
	FailedAttempts   int
}

func DefaultMonitorThresholds() MonitorThresholds {
	return MonitorThresholds{
		StuckAfter:       15 * time.Minute,
		Window:           time.Hour,
		FailureMinFailed: 5,
		FailureRateError: 0.20,
		FailureRateCrit:  0.50,
		WebhookErrors:    5,
		Backlog:          50,
		FailedAttempts:   10,
	}
}

// Check names, in the order they run.
const (
	CheckStuckJobs          = "stuck_jobs"
	CheckFailureRate        = "failure_rate"
	CheckWebhookErrors      = "webhook_errors"
	CheckBacklog            = "backlog"
	CheckProcessingFailures = "processing_failures"
	CheckNegativeCredits    = "negative_credits"
)

type monitorCheck struct {
	name string
	run  func(ctx context.Context, now time.Time) (*AlertInput, error)
}

// MonitorService runs independent, stateless health checks and records an
// alert for every condition that fires.
type MonitorService struct {
	store      store.MonitorStore
	alerts     *AlertService
	thresholds MonitorThresholds
	logger     *zap.Logger
	now        Clock
}

func NewMonitorService(monitorStore store.MonitorStore, alerts *AlertService, thresholds MonitorThresholds, log *zap.Logger, now Clock) *MonitorService {
	return &MonitorService{
		store:      monitorStore,
		alerts:     alerts,
		thresholds: thresholds,
		logger:     logger.OrNop(log),
		now:        orNow(now),
	}
}

func (s *MonitorService) checks() []monitorCheck {
	return []monitorCheck{
		{CheckStuckJobs, s.checkStuckJobs},
		{CheckFailureRate, s.checkFailureRate},
		{CheckWebhookErrors, s.checkWebhookErrors},
		{CheckBacklog, s.checkBacklog},
		{CheckProcessingFailures, s.checkProcessingFailures},
		{CheckNegativeCredits, s.checkNegativeCredits},
	}
}

// Run executes every check. A check whose query fails is reported as an
// ERROR alert for the monitor itself and does not stop the others. The
// system is healthy iff no ERROR or CRITICAL alert fired in this run.
func (s *MonitorService) Run(ctx context.Context) (*models.MonitorResult, error) {
	now := s.now()
	result := &models.MonitorResult{
		ChecksPerformed: []string{},
		AlertsTriggered: []models.Alert{},
		SystemHealthy:   true,
		CheckedAt:       now,
	}

	for _, check := range s.checks() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.ChecksPerformed = append(result.ChecksPerformed, check.name)

		in, err := check.run(ctx, now)
		if err != nil {
			s.logger.Error("monitor check failed", zap.String("check", check.name), zap.Error(err))
			in = &AlertInput{
				Level:   models.AlertError,
				Title:   "Monitor check failed",
				Message: fmt.Sprintf("check %s could not run: %v", check.name, err),
				Service: "monitor",
			}
		}
		if in == nil {
			continue
		}
		if in.Metadata == nil {
			in.Metadata = map[string]any{}
		}
		in.Metadata["check"] = check.name

		alert := s.record(ctx, *in, now)
		result.AlertsTriggered = append(result.AlertsTriggered, alert)
		if alert.Level.IsSevere() {
			result.SystemHealthy = false
		}
	}

	s.logger.Info("monitor run finished",
		zap.Int("checks", len(result.ChecksPerformed)),
		zap.Int("alerts", len(result.AlertsTriggered)),
		zap.Bool("healthy", result.SystemHealthy),
	)
	return result, nil
}

// record persists the alert. A storage failure is logged and the alert is
// still reported in the run result.
func (s *MonitorService) record(ctx context.Context, in AlertInput, now time.Time) models.Alert {
	alert, err := s.alerts.Create(ctx, in)
	if err == nil {
		return *alert
	}
	s.logger.Error("failed to persist alert", zap.String("title", in.Title), zap.Error(err))
	return models.Alert{Level: in.Level, Title: in.Title, Message: in.Message, Service: in.Service, CreatedAt: now}
}

func (s *MonitorService) checkStuckJobs(ctx context.Context, now time.Time) (*AlertInput, error) {
	n, err := s.store.CountStuckRegistros(ctx, now.Add(-s.thresholds.StuckAfter))
	if err != nil || n == 0 {
		return nil, err
	}
	return &AlertInput{
		Level:    models.AlertError,
		Title:    "Registros stuck in processing",
		Message:  fmt.Sprintf("%d registro(s) in processando for more than %s", n, s.thresholds.StuckAfter),
		Service:  "queue",
		Metadata: map[string]any{"count": n},
	}, nil
}

func (s *MonitorService) checkFailureRate(ctx context.Context, now time.Time) (*AlertInput, error) {
	total, failed, err := s.store.CountRegistrosCreatedSince(ctx, now.Add(-s.thresholds.Window))
	if err != nil || total == 0 || failed <= s.thresholds.FailureMinFailed {
		return nil, err
	}

	rate := float64(failed) / float64(total)
	var level models.AlertLevel
	switch {
	case rate > s.thresholds.FailureRateCrit:
		level = models.AlertCritical
	case rate > s.thresholds.FailureRateError:
		level = models.AlertError
	default:
		return nil, nil
	}
	return &AlertInput{
		Level:    level,
		Title:    "High registro failure rate",
		Message:  fmt.Sprintf("%.1f%% of registros failed in the last %s (%d of %d)", rate*100, s.thresholds.Window, failed, total),
		Service:  "processing",
		Metadata: map[string]any{"failed": failed, "total": total, "rate": rate},
	}, nil
}

func (s *MonitorService) checkWebhookErrors(ctx context.Context, now time.Time) (*AlertInput, error) {
	n, err := s.store.CountWebhookErrorsSince(ctx, now.Add(-s.thresholds.Window))
	if err != nil || n <= s.thresholds.WebhookErrors {
		return nil, err
	}
	return &AlertInput{
		Level:    models.AlertError,
		Title:    "Webhook errors",
		Message:  fmt.Sprintf("%d webhook deliveries failed in the last %s", n, s.thresholds.Window),
		Service:  "webhooks",
		Metadata: map[string]any{"count": n},
	}, nil
}

func (s *MonitorService) checkBacklog(ctx context.Context, _ time.Time) (*AlertInput, error) {
	n, err := s.store.CountRegistrosByStatus(ctx, models.StatusPendente)
	if err != nil || n <= s.thresholds.Backlog {
		return nil, err
	}
	return &AlertInput{
		Level:    models.AlertWarn,
		Title:    "Registro backlog",
		Message:  fmt.Sprintf("%d registros waiting in pendente", n),
		Service:  "queue",
		Metadata: map[string]any{"count": n},
	}, nil
}

func (s *MonitorService) checkProcessingFailures(ctx context.Context, now time.Time) (*AlertInput, error) {
	n, err := s.store.CountFailedAttemptsSince(ctx, now.Add(-s.thresholds.Window))
	if err != nil || n <= s.thresholds.FailedAttempts {
		return nil, err
	}
	return &AlertInput{
		Level:    models.AlertWarn,
		Title:    "Processing failures",
		Message:  fmt.Sprintf("%d failed processing attempts in the last %s", n, s.thresholds.Window),
		Service:  "processing",
		Metadata: map[string]any{"count": n},
	}, nil
}

func (s *MonitorService) checkNegativeCredits(ctx context.Context, _ time.Time) (*AlertInput, error) {
	n, err := s.store.CountNegativeBalances(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	return &AlertInput{
		Level:    models.AlertCritical,
		Title:    "Negative credit balances",
		Message:  fmt.Sprintf("%d user(s) with negative available credits", n),
		Service:  "credits",
		Metadata: map[string]any{"count": n},
	}, nil
}
