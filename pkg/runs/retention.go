package runs

import (
	"context"
	"log/slog"
	"time"
)

// RetentionLoop deletes finished runs older than cfg.RetentionDays every
// cfg.CleanupInterval until ctx is cancelled. A zero retention keeps
// everything.
func RetentionLoop(ctx context.Context, store *Store, cfg *RunsConfig, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil || cfg.RetentionDays <= 0 {
		logger.Info("run history retention disabled")
		return
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune(store, cfg.RetentionDays, logger)
		}
	}
}

func prune(store *Store, retentionDays int, logger *slog.Logger) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := store.DeleteOlderThan(cutoff)
	if err != nil {
		logger.Error("failed to delete old runs", "error", err)
		return
	}
	if deleted > 0 {
		logger.Info("deleted old runs", "count", deleted)
	}
}
