package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultFinalizeInterval = 30 * time.Second

// Finalizer closes challenges whose voting window elapsed and verifies
// pending posts nobody challenged.
type Finalizer struct {
	resolution *ResolutionService
	stake      *StakeService
	logger     *zap.Logger
	worker     *worker
}

func NewFinalizer(rs *ResolutionService, ss *StakeService, metrics *Metrics, logger *zap.Logger) *Finalizer {
	return &Finalizer{
		resolution: rs,
		stake:      ss,
		logger:     logger,
		worker:     newWorker("finalizer", defaultFinalizeInterval, metrics, logger),
	}
}

func (f *Finalizer) SetInterval(d time.Duration) {
	f.worker.interval = d
}

func (f *Finalizer) Start() {
	f.worker.start(f.run)
}

func (f *Finalizer) Stop() {
	f.worker.stop()
}

func (f *Finalizer) run(ctx context.Context) {
	finalized, err := f.resolution.FinalizeDue(ctx)
	if err != nil {
		f.logger.Error("finalize due challenges failed", zap.Error(err))
	} else if finalized > 0 {
		f.logger.Info("finalized challenges", zap.Int("count", finalized))
	}

	verified, err := f.stake.VerifyStale(ctx)
	if err != nil {
		f.logger.Error("verify stale posts failed", zap.Error(err))
	} else if verified > 0 {
		f.logger.Info("verified unchallenged posts", zap.Int("count", verified))
	}
}
