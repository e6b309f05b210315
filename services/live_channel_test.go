package services

import (
	"sync"
	"testing"
	"time"

	"nfl-pickem/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	broker := NewBroker(BrokerConfig{SubscriberBuffer: 4, HeartbeatInterval: time.Second})
	a := broker.Subscribe(1)
	b := broker.Subscribe(2)

	event := models.NewPickEvent(models.EventPickUpdate, 7, 3)
	broker.Publish(event)

	assert.Equal(t, event, <-a.Events())
	assert.Equal(t, event, <-b.Events())
}

func TestBrokerHasNoReplay(t *testing.T) {
	broker := NewBroker(BrokerConfig{SubscriberBuffer: 4, HeartbeatInterval: time.Second})
	broker.Publish(models.NewPickEvent(models.EventPickUpdate, 1, 1))

	late := broker.Subscribe(2)
	select {
	case event := <-late.Events():
		t.Fatalf("late subscriber received %v", event)
	default:
	}
}

func TestBrokerDropsWhenFull(t *testing.T) {
	broker := NewBroker(BrokerConfig{SubscriberBuffer: 2, HeartbeatInterval: time.Second})
	slow := broker.Subscribe(1)
	fast := broker.Subscribe(2)

	done := make(chan struct{})
	var received int
	go func() {
		defer close(done)
		for range fast.Events() {
			received++
		}
	}()

	for i := 0; i < 5; i++ {
		broker.Publish(models.NewPickEvent(models.EventPickUpdate, 1, i))
	}

	assert.Equal(t, uint64(3), slow.Dropped())
	assert.Len(t, slow.Events(), 2)

	broker.Unsubscribe(fast.ID)
	<-done
	assert.GreaterOrEqual(t, received, 2)
}

func TestBrokerSweepRemovesDead(t *testing.T) {
	broker := NewBroker(BrokerConfig{SubscriberBuffer: 1, HeartbeatInterval: time.Second})
	dead := broker.Subscribe(1)
	alive := broker.Subscribe(2)
	dead.MarkDead()

	broker.Publish(models.NewPickEvent(models.EventPickFinalize, 2, 1))
	assert.Len(t, dead.Events(), 0, "dead subscribers are skipped")

	assert.Equal(t, 1, broker.Sweep())
	assert.Equal(t, 1, broker.SubscriberCount())

	_, open := <-dead.Events()
	assert.False(t, open)
	assert.Len(t, alive.Events(), 1)
}

func TestBrokerUnsubscribeTwice(t *testing.T) {
	broker := NewBroker(DefaultBrokerConfig())
	sub := broker.Subscribe(1)
	broker.Unsubscribe(sub.ID)
	assert.NotPanics(t, func() { broker.Unsubscribe(sub.ID) })
}

func TestBrokerConcurrentPublishAndUnsubscribe(t *testing.T) {
	broker := NewBroker(BrokerConfig{SubscriberBuffer: 1, HeartbeatInterval: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := broker.Subscribe(i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				broker.Publish(models.NewPickEvent(models.EventPickUpdate, 1, j))
			}
		}()
		go func(id string) {
			defer wg.Done()
			broker.Unsubscribe(id)
		}(sub.ID)
	}
	wg.Wait()
	require.Equal(t, 0, broker.SubscriberCount())
}

// recordingPublisher captures events for service tests
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LiveEvent
}

func (p *recordingPublisher) Publish(event models.LiveEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []models.LiveEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.LiveEvent(nil), p.events...)
}
