package core

// scheduler.go provides background job scheduling for maintenance tasks.
//
// Currently implements parse retention: stored parses older than the retention
// window are deleted in batches, together with their blocks and cells.
//
// The scheduler runs until its context is cancelled. A failed purge run is
// logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention scheduler.
type RetentionConfig struct {
	RetentionDays int           // Days to keep stored parses; 0 disables the job
	BatchSize     int           // Parses per delete statement
	CheckInterval time.Duration // How often to run (default: 24h)
}

// StartRetentionScheduler periodically deletes stored parses older than
// cfg.RetentionDays. It runs immediately on start, then every CheckInterval,
// and returns when ctx is cancelled. It returns at once when no store is
// configured or retention is disabled.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	if s.store == nil || cfg.RetentionDays <= 0 {
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	slog.Info("retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"batch_size", cfg.BatchSize,
		"interval", cfg.CheckInterval,
	)

	// Run immediately on startup
	s.runRetentionJob(ctx, cfg, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case now := <-ticker.C:
			s.runRetentionJob(ctx, cfg, now)
		}
	}
}

// runRetentionJob performs one purge cycle and returns the number of parses deleted.
func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig, now time.Time) int64 {
	start := time.Now()
	cutoff := now.AddDate(0, 0, -cfg.RetentionDays)

	purged, err := s.store.PurgeBefore(ctx, cutoff, cfg.BatchSize)
	if err != nil {
		slog.Error("retention purge failed", "error", err, "purged", purged)
		return purged
	}

	slog.Info("retention job completed",
		"parses_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged
}
