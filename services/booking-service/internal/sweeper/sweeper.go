// Package sweeper periodically marks overdue confirmed appointments as
// no_show.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// NoShowSweeper is implemented by *engine.Engine.
type NoShowSweeper interface {
	SweepNoShows(ctx context.Context, cutoff time.Time, batch int) (int, error)
}

type Config struct {
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

type Worker struct {
	engine    NoShowSweeper
	logger    *slog.Logger
	now       func() time.Time
	interval  time.Duration
	grace     time.Duration
	batchSize int
}

func New(engine NoShowSweeper, logger *slog.Logger, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		engine:    engine,
		logger:    logger,
		now:       time.Now,
		interval:  cfg.Interval,
		grace:     cfg.Grace,
		batchSize: cfg.BatchSize,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep drains every overdue appointment visible now, one batch at a time.
func (w *Worker) Sweep(ctx context.Context) int {
	cutoff := w.now().Add(-w.grace)
	total := 0
	for ctx.Err() == nil {
		n, err := w.engine.SweepNoShows(ctx, cutoff, w.batchSize)
		if err != nil {
			w.logger.Error("no-show sweep failed", "err", err)
			break
		}
		total += n
		// A short batch means the backlog is drained. Skipped rows keep
		// a full batch from moving, so stop when nothing moved either.
		if n < w.batchSize || n == 0 {
			break
		}
	}
	if total > 0 {
		w.logger.Info("no-show sweep", "moved", total, "cutoff", cutoff)
	}
	return total
}
