// Package event fans committed domain events out to in-process
// subscribers. Events reach the bus only after the outbox dispatcher has
// read them back from storage, so subscribers never see uncommitted state.
package event

import (
	"fmt"
	"sync"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	SubscriberQueueSize = 32
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

// AllEvents subscribes to every event type.
const AllEvents domain.EventType = "*"

type SubscriberID int

type HandlerFunc func(domain.DomainEvent)

// Subscriber receives events. Close must be idempotent.
type Subscriber interface {
	Deliver(domain.DomainEvent) error
	Close()
}

type Bus struct {
	subscribers map[domain.EventType]map[SubscriberID]Subscriber
	lastSubID   SubscriberID
	mu          sync.RWMutex
	logger      *zap.Logger
	metrics     busMetrics

	asyncQueue chan domain.DomainEvent
	asyncWg    sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewBus(promRegistry prometheus.Registerer, logger *zap.Logger) *Bus {
	b := &Bus{
		subscribers: make(map[domain.EventType]map[SubscriberID]Subscriber),
		logger:      logger,
		asyncQueue:  make(chan domain.DomainEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	b.metrics.init(promRegistry)
	for range AsyncWorkerPoolSize {
		b.asyncWg.Add(1)
		go b.asyncWorker()
	}
	return b
}

func (b *Bus) asyncWorker() {
	defer b.asyncWg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case evt := <-b.asyncQueue:
			b.Publish(evt)
		}
	}
}

// channelSubscriber delivers into a buffered channel. Deliver blocks while
// the buffer is full. Close waits for in-flight sends before closing.
type channelSubscriber struct {
	ch     chan domain.DomainEvent
	mu     sync.RWMutex
	closed bool
}

func (c *channelSubscriber) Deliver(evt domain.DomainEvent) (err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel deliver panic: %v", r)
		}
	}()
	c.ch <- evt
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

func subscriberKind(sub Subscriber) string {
	if _, ok := sub.(*channelSubscriber); ok {
		return "in-memory"
	}
	return "remote"
}

// Register adds a custom Subscriber for eventType.
func (b *Bus) Register(eventType domain.EventType, sub Subscriber) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSubID++
	id := b.lastSubID
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberID]Subscriber)
	}
	b.subscribers[eventType][id] = sub
	b.metrics.subscribers.WithLabelValues(string(eventType), subscriberKind(sub)).Inc()
	return id
}

// Subscribe returns a channel receiving events of eventType. The channel
// is closed by Unsubscribe or Stop.
func (b *Bus) Subscribe(eventType domain.EventType) (SubscriberID, <-chan domain.DomainEvent) {
	sub := &channelSubscriber{ch: make(chan domain.DomainEvent, SubscriberQueueSize)}
	return b.Register(eventType, sub), sub.ch
}

// SubscribeFunc runs fn on its own goroutine for each event of eventType.
func (b *Bus) SubscribeFunc(eventType domain.EventType, fn HandlerFunc) SubscriberID {
	id, ch := b.Subscribe(eventType)
	go func() {
		for evt := range ch {
			fn(evt)
		}
	}()
	return id
}

func (b *Bus) Unsubscribe(eventType domain.EventType, id SubscriberID) {
	b.mu.Lock()
	var sub Subscriber
	if subs, ok := b.subscribers[eventType]; ok {
		if s, ok := subs[id]; ok {
			sub = s
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, eventType)
			}
			b.metrics.subscribers.WithLabelValues(string(eventType), subscriberKind(s)).Dec()
		}
	}
	b.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

type subRef struct {
	eventType domain.EventType
	id        SubscriberID
	sub       Subscriber
}

func (b *Bus) snapshot(eventType domain.EventType) []subRef {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []subRef
	for _, t := range []domain.EventType{eventType, AllEvents} {
		for id, sub := range b.subscribers[t] {
			out = append(out, subRef{eventType: t, id: id, sub: sub})
		}
	}
	return out
}

// Publish delivers evt to every subscriber of its type and of AllEvents.
// A subscriber that fails or panics is unsubscribed.
func (b *Bus) Publish(evt domain.DomainEvent) {
	for _, ref := range b.snapshot(evt.Type) {
		var deliverErr error
		func() {
			defer func() {
				if r := recover(); r != nil {
					deliverErr = fmt.Errorf("subscriber deliver panic: %v", r)
				}
			}()
			deliverErr = ref.sub.Deliver(evt)
		}()
		if deliverErr != nil {
			b.Unsubscribe(ref.eventType, ref.id)
			b.metrics.deliveryErrors.WithLabelValues(string(evt.Type), subscriberKind(ref.sub)).Inc()
			b.logger.Debug("event delivery error",
				zap.String("type", string(evt.Type)),
				zap.Error(deliverErr),
			)
		}
	}
	b.metrics.events.WithLabelValues(string(evt.Type)).Inc()
}

// PublishAsync queues evt for delivery by the worker pool. It returns false
// when the bus is stopped or the queue is full.
func (b *Bus) PublishAsync(evt domain.DomainEvent) bool {
	select {
	case <-b.stopCh:
		return false
	default:
	}
	select {
	case b.asyncQueue <- evt:
		return true
	default:
		b.logger.Warn("async event queue full, dropping event", zap.String("type", string(evt.Type)))
		b.metrics.deliveryErrors.WithLabelValues(string(evt.Type), "async-dropped").Inc()
		return false
	}
}

// Stop halts the async workers and closes every subscriber. Calling Stop
// more than once is safe.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.asyncWg.Wait()

		b.mu.Lock()
		subs := b.subscribers
		b.subscribers = make(map[domain.EventType]map[SubscriberID]Subscriber)
		b.mu.Unlock()

		for _, byID := range subs {
			for _, sub := range byID {
				sub.Close()
			}
		}
		b.metrics.subscribers.Reset()
	})
}
