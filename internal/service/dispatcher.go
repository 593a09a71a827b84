package service

import (
	"context"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/event"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultDispatchInterval = 2 * time.Second
	dispatchBatchSize       = 200
)

// Dispatcher drains the outbox onto the event bus. An event is marked
// delivered only after it was published, so a crash in between
// re-publishes it (at least once).
type Dispatcher struct {
	eventStore domain.EventStore
	bus        *event.Bus
	logger     *zap.Logger
	worker     *worker
}

func NewDispatcher(es domain.EventStore, bus *event.Bus, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		eventStore: es,
		bus:        bus,
		logger:     logger,
		worker:     newWorker("event dispatcher", defaultDispatchInterval, metrics, logger),
	}
}

func (d *Dispatcher) SetInterval(interval time.Duration) {
	d.worker.interval = interval
}

func (d *Dispatcher) Start() {
	d.worker.start(func(ctx context.Context) { _, _ = d.Dispatch(ctx) })
}

func (d *Dispatcher) Stop() {
	d.worker.stop()
}

// Dispatch publishes one batch of undelivered events in sequence order.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	events, err := d.eventStore.ListUndelivered(ctx, dispatchBatchSize)
	if err != nil {
		d.logger.Error("failed to read outbox", zap.Error(err))
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, evt := range events {
		d.bus.Publish(evt)
		ids = append(ids, evt.ID)
	}
	if err := d.eventStore.MarkDelivered(ctx, ids, time.Now()); err != nil {
		d.logger.Error("failed to mark events delivered", zap.Int("count", len(ids)), zap.Error(err))
		return 0, err
	}
	return len(ids), nil
}
