package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/fx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eleven-am/dicton/internal/metrics"
	"github.com/eleven-am/dicton/internal/timing"
)

func ProvideLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}

func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvideTimingStore opens the append-only timing log. Disabled timing
// yields a nil store; the tracker treats that as a no-op sink.
func ProvideTimingStore(cfg *Config, log *slog.Logger) (*timing.Store, error) {
	if !cfg.TimingEnabled {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.TimingDBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create timing db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.TimingDBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open timing db: %w", err)
	}

	store := timing.NewStore(db)
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate timing db: %w", err)
	}
	log.Info("timing log enabled", "path", cfg.TimingDBPath)
	return store, nil
}

func ProvideTracker(store *timing.Store, log *slog.Logger) *timing.Tracker {
	return timing.NewTracker(store, log)
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideMetrics,
		ProvideTimingStore,
		ProvideTracker,
	),
)
