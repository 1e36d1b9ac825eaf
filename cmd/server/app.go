package main

import (
	"fmt"

	"go.uber.org/zap"
	"webmarcas-backend/internal/config"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/opentimestamps"
	"webmarcas-backend/internal/services"
	"webmarcas-backend/internal/supabase"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *supabase.DatabaseClient
	realtime *supabase.RealtimeClient
	storage  *supabase.StorageClient

	credits      *services.CreditService
	registros    *services.RegistroService
	verification *services.VerificationService
	alerts       *services.AlertService
	monitor      *services.MonitorService
	projects     *services.ProjectService
	payments     *services.PaymentService
	anchor       *services.AnchorService
	proofs       *services.ProofService
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// newApp connects to the database and builds the services. Supabase Storage
// and Realtime are optional; without them proofs stay inline and no events
// are published.
func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	db, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db}

	if cfg.RealtimeEnabled() {
		client, err := supabase.NewClient(cfg)
		if err != nil {
			log.Warn("realtime disabled: failed to initialize Supabase client", zap.Error(err))
		} else {
			a.realtime = supabase.NewRealtimeClient(client.Supabase)
		}
	}
	if cfg.StorageEnabled() {
		storage, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.SupabaseStorageBucket)
		if err != nil {
			log.Warn("proof uploads disabled: failed to initialize storage client", zap.Error(err))
		} else {
			a.storage = storage
		}
	}

	// Typed nils must not reach the services' interface parameters.
	var events services.EventPublisher
	if a.realtime != nil {
		events = a.realtime
	}
	var (
		uploader   services.ProofUploader
		downloader services.ProofDownloader
	)
	if a.storage != nil {
		uploader = a.storage
		downloader = a.storage
	}

	a.credits = services.NewCreditService(db, db, log, nil)
	a.registros = services.NewRegistroService(db, db, db, a.credits, events, log, nil)
	a.verification = services.NewVerificationService(db, cfg.VerifyCacheSize, cfg.VerifyCacheTTL, log)
	a.alerts = services.NewAlertService(db, log, nil)
	a.monitor = services.NewMonitorService(db, a.alerts, services.DefaultMonitorThresholds(), log, nil)
	a.projects = services.NewProjectService(db, log, nil)
	a.payments = services.NewPaymentService(db, a.credits, log, nil)

	stamper := opentimestamps.NewClient(cfg.OTSCalendarURLs, cfg.OTSTimeout)
	a.anchor = services.NewAnchorService(a.registros, stamper, uploader, cfg.OTSTimeout, log)
	a.proofs = services.NewProofService(a.registros, downloader, log)

	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}
