package event_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/event"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func newEvent(t domain.EventType) domain.DomainEvent {
	return domain.DomainEvent{ID: uuid.New(), Type: t, AggregateID: uuid.New(), CreatedAt: time.Now()}
}

func receive(t *testing.T, ch <-chan domain.DomainEvent) domain.DomainEvent {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return domain.DomainEvent{}
}

func TestBus_SubscribeByType(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := event.NewBus(prometheus.NewRegistry(), zap.NewNop())
	defer bus.Stop()

	_, created := bus.Subscribe(domain.EventChallengeCreated)
	_, all := bus.Subscribe(event.AllEvents)

	staked := newEvent(domain.EventPostStaked)
	challenged := newEvent(domain.EventChallengeCreated)
	bus.Publish(staked)
	bus.Publish(challenged)

	assert.Equal(t, challenged.ID, receive(t, created).ID)
	assert.Equal(t, staked.ID, receive(t, all).ID)
	assert.Equal(t, challenged.ID, receive(t, all).ID)

	select {
	case evt := <-created:
		t.Fatalf("unexpected event %s", evt.Type)
	default:
	}
}

func TestBus_SubscribeFunc(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := event.NewBus(nil, zap.NewNop())
	defer bus.Stop()

	var got atomic.Int32
	bus.SubscribeFunc(domain.EventChallengeResolved, func(domain.DomainEvent) {
		got.Add(1)
	})
	for range 3 {
		bus.Publish(newEvent(domain.EventChallengeResolved))
	}
	assert.Eventually(t, func() bool { return got.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestBus_PublishAsync(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := event.NewBus(nil, zap.NewNop())

	_, ch := bus.Subscribe(domain.EventBalanceReconciled)
	evt := newEvent(domain.EventBalanceReconciled)
	require.True(t, bus.PublishAsync(evt))
	assert.Equal(t, evt.ID, receive(t, ch).ID)

	bus.Stop()
	assert.False(t, bus.PublishAsync(evt))
	_, open := <-ch
	assert.False(t, open, "Stop should close subscriber channels")
}

func TestBus_Unsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := event.NewBus(nil, zap.NewNop())
	defer bus.Stop()

	id, ch := bus.Subscribe(domain.EventPostStaked)
	bus.Unsubscribe(domain.EventPostStaked, id)
	_, open := <-ch
	assert.False(t, open)

	// Publishing with no subscribers is a no-op.
	bus.Publish(newEvent(domain.EventPostStaked))
}

type failingSubscriber struct {
	closed atomic.Bool
}

func (f *failingSubscriber) Deliver(domain.DomainEvent) error { return errors.New("remote gone") }
func (f *failingSubscriber) Close()                           { f.closed.Store(true) }

func TestBus_FailingSubscriberIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := event.NewBus(nil, zap.NewNop())
	defer bus.Stop()

	sub := &failingSubscriber{}
	bus.Register(domain.EventPostStaked, sub)
	_, healthy := bus.Subscribe(domain.EventPostStaked)

	evt := newEvent(domain.EventPostStaked)
	bus.Publish(evt)

	assert.True(t, sub.closed.Load())
	assert.Equal(t, evt.ID, receive(t, healthy).ID)
}
