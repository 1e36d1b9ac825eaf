package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"webmarcas-backend/docs"
	"webmarcas-backend/internal/config"
	"webmarcas-backend/internal/handlers"
	"webmarcas-backend/internal/scheduler"
	"webmarcas-backend/internal/server"
)

const shutdownTimeout = 30 * time.Second

var (
	skipMigrations bool
	noScheduler    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations, the HTTP API and the background jobs",
	RunE:  runServe,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
		cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the anchoring and monitor jobs in this process")
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	setSwaggerHost(cfg)

	if !skipMigrations {
		if err := runMigrations(cfg, log); err != nil {
			return err
		}
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *scheduler.Scheduler
	if !noScheduler {
		sched, err = a.newScheduler()
		if err != nil {
			return err
		}
		sched.Start()
	}

	router := server.NewRouter(cfg, log, server.Handlers{
		Health:    handlers.NewHealthHandler(a.db),
		Registros: handlers.NewRegistrosHandler(a.registros, cfg.MaxUploadBytes, log),
		Proofs:    handlers.NewProofHandler(a.proofs, log),
		Verify:    handlers.NewVerifyHandler(a.verification, log),
		Credits:   handlers.NewCreditsHandler(a.credits, log),
		Alerts:    handlers.NewAlertsHandler(a.alerts, a.monitor, log),
		Projects:  handlers.NewProjectsHandler(a.projects, log),
		Webhook:   handlers.NewWebhookHandler(a.payments, log),
		Worker:    handlers.NewWorkerHandler(a.registros, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	log.Info("server stopped")
	return nil
}

// newScheduler registers the anchoring and monitor jobs. When REDIS_URL is
// set the jobs are guarded by a Redis lock so that only one replica runs
// each tick.
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	var locker scheduler.Locker
	if a.cfg.RedisURL != "" {
		client, err := scheduler.NewRedisClient(a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		locker = scheduler.NewRedisLock(client)
	} else {
		a.log.Warn("REDIS_URL not set: jobs are not coordinated across replicas")
	}

	sched := scheduler.New(locker, a.log)

	// Every registro in a batch may wait on the calendars.
	anchorTimeout := a.cfg.OTSTimeout*time.Duration(a.cfg.AnchorBatchSize) + time.Minute
	if err := sched.AddJob("anchor", a.cfg.AnchorSchedule, anchorTimeout, func(ctx context.Context) error {
		_, err := a.anchor.ProcessPending(ctx, a.cfg.AnchorBatchSize)
		return err
	}); err != nil {
		return nil, err
	}
	if err := sched.AddJob("monitor", a.cfg.MonitorSchedule, 2*time.Minute, func(ctx context.Context) error {
		_, err := a.monitor.Run(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	return sched, nil
}

func setSwaggerHost(cfg *config.Config) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Host == "" {
		return
	}
	docs.SwaggerInfo.Host = baseURL.Host
	if baseURL.Scheme == "https" {
		docs.SwaggerInfo.Schemes = []string{"https", "http"}
	} else {
		docs.SwaggerInfo.Schemes = []string{"http", "https"}
	}
}
