package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultRunTimeout = 30 * time.Second

// worker runs fn on a fixed interval until stopped. Each run gets its own
// timeout so a stuck collaborator cannot wedge the loop.
type worker struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *Metrics

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newWorker(name string, interval time.Duration, metrics *Metrics, logger *zap.Logger) *worker {
	return &worker{
		name:     name,
		interval: interval,
		timeout:  defaultRunTimeout,
		logger:   logger,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
	}
}

func (w *worker) start(fn func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info(w.name+" started", zap.Duration("interval", w.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
				fn(ctx)
				cancel()
				w.metrics.workerRuns.WithLabelValues(w.name).Inc()
			case <-w.stopCh:
				w.logger.Info(w.name + " stopped")
				return
			}
		}
	}()
}

func (w *worker) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}
