package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/observability"
	"github.com/davidolu/cryptovest/internal/service"
)

// SweepWorker polls for matured investments and pays them out. Safe to
// run as concurrent instances: the conditional payout update means two
// overlapping sweeps never pay the same investment twice.
type SweepWorker struct {
	svc       *service.InvestmentService
	interval  time.Duration
	batchSize int32
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewSweepWorker constructs a worker with a default one-minute interval.
func NewSweepWorker(svc *service.InvestmentService) *SweepWorker {
	return &SweepWorker{
		svc:       svc,
		interval:  time.Minute,
		batchSize: 100,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval updates the poll interval.
func (w *SweepWorker) WithInterval(interval time.Duration) *SweepWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize updates the number of candidates fetched per run.
func (w *SweepWorker) WithBatchSize(size int32) *SweepWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *SweepWorker) Start(ctx context.Context) {
	zap.L().Info("sweep worker starting",
		zap.Duration("interval", w.interval),
		zap.Int32("batch_size", w.batchSize))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("sweep worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("sweep worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SweepWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SweepWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// SweepOnce runs a single sweep immediately. Useful for tests and
// manual triggering.
func (w *SweepWorker) SweepOnce(ctx context.Context) (int, error) {
	return w.svc.SweepMatured(ctx, w.batchSize)
}

func (w *SweepWorker) runOnce(ctx context.Context) {
	paid, err := w.svc.SweepMatured(ctx, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("sweep", "failed")
		zap.L().Error("investment sweep failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("sweep", "success")
	observability.AddSweepPaid(paid)
	if paid > 0 {
		zap.L().Info("investment sweep paid out matured investments", zap.Int("paid", paid))
	}
}
