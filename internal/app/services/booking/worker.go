package booking

import (
	"context"
	"log/slog"
	"time"
)

// CompletionWorker periodically closes stays whose check-out date has passed.
type CompletionWorker struct {
	Service   *Service
	Logger    *slog.Logger
	Interval  time.Duration
	BatchSize int
}

func (w *CompletionWorker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one completion sweep.
func (w *CompletionWorker) Tick(ctx context.Context) int {
	batch := w.BatchSize
	if batch <= 0 {
		batch = 100
	}
	done, err := w.Service.CompleteDue(ctx, batch)
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.ErrorContext(ctx, "completion sweep finished with errors", "completed", done, "error", err)
	} else if done > 0 {
		logger.InfoContext(ctx, "completion sweep", "completed", done)
	}
	return done
}
