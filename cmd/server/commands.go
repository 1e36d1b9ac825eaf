package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"webmarcas-backend/internal/config"
	"webmarcas-backend/internal/database"
)

var migrateDownSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		if migrateDownSteps > 0 {
			migrator, err := database.NewMigrator(cfg.DatabaseURL, log)
			if err != nil {
				return err
			}
			defer migrator.Close()
			return migrator.Down(migrateDownSteps)
		}
		return runMigrations(cfg, log)
	},
}

var anchorBatch int

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Anchor one batch of pending registros and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setupApp()
		if err != nil {
			return err
		}
		defer a.Close()

		batch := anchorBatch
		if batch <= 0 {
			batch = a.cfg.AnchorBatchSize
		}
		report, err := a.anchor.ProcessPending(cmd.Context(), batch)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the health checks once and print the result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setupApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.monitor.Run(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		if !result.SystemHealthy {
			return fmt.Errorf("system unhealthy: %d alerts triggered", len(result.AlertsTriggered))
		}
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile USER_ID",
	Short: "Recompute a user's cached balance from the credit ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", args[0], err)
		}

		a, err := setupApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.credits.Reconcile(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDownSteps, "down", 0, "roll back this many migrations instead of applying")
	anchorCmd.Flags().IntVar(&anchorBatch, "batch", 0, "registros to process (defaults to ANCHOR_BATCH_SIZE)")
}

func setupApp() (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, log)
}

func runMigrations(cfg *config.Config, log *zap.Logger) error {
	migrator, err := database.NewMigrator(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Run(); err != nil {
		return err
	}
	log.Info("migrations completed")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
