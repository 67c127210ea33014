package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionSweepInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically prunes
// journal records older than retention. It stops when ctx is done.
func StartRetentionWorker(ctx context.Context, journal Journal, retention, interval time.Duration) {
	if interval <= 0 {
		interval = retentionSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Journal retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				sweepJournal(ctx, journal, retention)
			case <-ctx.Done():
				slog.Info("Journal retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepJournal(ctx context.Context, journal Journal, retention time.Duration) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := journal.DeleteOlderThan(sweepCtx, retention)
	if err != nil {
		slog.Error("Journal retention sweep failed", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Journal retention sweep removed records", "count", deleted)
	}
	return deleted
}
