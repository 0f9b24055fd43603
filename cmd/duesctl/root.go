package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	financeapp "github.com/erp/dues/internal/application/finance"
	reportapp "github.com/erp/dues/internal/application/report"
	"github.com/erp/dues/internal/infrastructure/config"
	"github.com/erp/dues/internal/infrastructure/logger"
	"github.com/erp/dues/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "duesctl",
	Short: "Inspect payment dues and ledger integrity",
	Long: `duesctl reads the same configuration as the dues server (DUES_* environment
variables or config.toml) and queries the database directly. Use it for
month-end reports and scheduled ledger integrity sweeps.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("auto-migrate", false, "Create missing tables before running (SQLite only)")
}

// app holds the services a command needs
type app struct {
	db             *persistence.Database
	reconciliation *financeapp.ReconciliationService
	reports        *reportapp.DuesReportService
	log            *zap.Logger
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("Error closing database", zap.Error(err))
	}
	_ = a.log.Sync()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level, _ := cmd.Flags().GetString("log-level")
	log, err := logger.New(&logger.Config{
		Level:  level,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(level), cfg.Telemetry.DBSlowQueryThresh))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if migrate, _ := cmd.Flags().GetBool("auto-migrate"); migrate {
		if cfg.Database.Driver != config.DriverSQLite {
			_ = db.Close()
			return nil, fmt.Errorf("--auto-migrate is only supported for sqlite, use the migrate command for %s", cfg.Database.Driver)
		}
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	obligations := persistence.NewGormObligationRepository(db.DB)
	return &app{
		db: db,
		reconciliation: financeapp.NewReconciliationService(
			obligations,
			persistence.NewGormPaymentEventRepository(db.DB),
			persistence.NewGormTransactionScope(db.DB),
			financeapp.WithMaxConflictRetries(cfg.Reconciliation.MaxConflictRetries),
			financeapp.WithLogger(log),
		),
		reports: reportapp.NewDuesReportService(obligations, cfg.Reconciliation.CurrencyCode,
			reportapp.WithLogger(log)),
		log: log,
	}, nil
}

// commandContext returns the command context, falling back to Background
// when the command is invoked without ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
