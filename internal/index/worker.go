package index

import (
	"context"
	"time"

	"github.com/julianstephens/dayjot/internal/constants"
	"github.com/julianstephens/dayjot/internal/logger"
)

// Worker drains the outbox in the background, catching events whose
// synchronous drain failed or was interrupted.
type Worker struct {
	index    *Index
	interval time.Duration
}

func NewWorker(ix *Index, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = constants.IndexWorkerInterval
	}
	return &Worker{index: ix, interval: interval}
}

// Run polls until ctx is canceled. A drain runs immediately on start so
// events left by a crash are applied without waiting a full interval.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("Index worker starting", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Index worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	if err := w.index.DrainAll(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Index drain pass failed", "error", err)
	}
}
