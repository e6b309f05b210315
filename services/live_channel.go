package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"nfl-pickem/logging"
	"nfl-pickem/metrics"
	"nfl-pickem/models"

	"github.com/google/uuid"
)

// Publisher receives state-change notifications
type Publisher interface {
	Publish(event models.LiveEvent)
}

// BrokerConfig sizes the live channel
type BrokerConfig struct {
	SubscriberBuffer  int
	HeartbeatInterval time.Duration
}

// DefaultBrokerConfig returns the standard live channel settings
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{SubscriberBuffer: 64, HeartbeatInterval: 25 * time.Second}
}

// Subscription is one connected listener
type Subscription struct {
	ID     string
	UserID int

	events  chan models.LiveEvent
	dead    atomic.Bool
	dropped atomic.Uint64
}

// Events is the subscriber's receive channel; it is closed on unsubscribe
func (s *Subscription) Events() <-chan models.LiveEvent {
	return s.events
}

// MarkDead flags the subscription for removal on the next sweep
func (s *Subscription) MarkDead() {
	s.dead.Store(true)
}

// Dropped returns how many events were discarded because the buffer was full
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Broker is an in-process, at-most-once fan-out with no replay. Publishing
// never blocks: a subscriber with a full buffer misses the event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	config BrokerConfig
	logger *logging.Logger
}

// NewBroker creates an empty broker
func NewBroker(config BrokerConfig) *Broker {
	if config.SubscriberBuffer < 1 {
		config.SubscriberBuffer = DefaultBrokerConfig().SubscriberBuffer
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultBrokerConfig().HeartbeatInterval
	}
	return &Broker{
		subs:   make(map[string]*Subscription),
		config: config,
		logger: logging.WithPrefix("LiveChannel"),
	}
}

// HeartbeatInterval is the idle period after which transports send a keepalive
func (b *Broker) HeartbeatInterval() time.Duration {
	return b.config.HeartbeatInterval
}

// Subscribe registers a listener. Events published before this call are never delivered.
func (b *Broker) Subscribe(userID int) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		events: make(chan models.LiveEvent, b.config.SubscriberBuffer),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	count := len(b.subs)
	b.mu.Unlock()

	metrics.LiveSubscribers.Set(float64(count))
	b.logger.Debugf("Subscriber %s connected (UserID: %d, total: %d)", sub.ID, userID, count)
	return sub
}

// Unsubscribe removes a listener and closes its channel. Safe to call twice.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(sub.events)
	}
	count := len(b.subs)
	b.mu.Unlock()

	if ok {
		metrics.LiveSubscribers.Set(float64(count))
		b.logger.Debugf("Subscriber %s disconnected (dropped %d, total: %d)", id, sub.Dropped(), count)
	}
}

// Publish fans the event out to every live subscriber without blocking
func (b *Broker) Publish(event models.LiveEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.dead.Load() {
			continue
		}
		select {
		case sub.events <- event:
			metrics.LiveEvents.WithLabelValues(event.Type, "sent").Inc()
		default:
			sub.dropped.Add(1)
			metrics.LiveEvents.WithLabelValues(event.Type, "dropped").Inc()
			b.logger.Warnf("Subscriber %s buffer full, dropping %s", sub.ID, event.Type)
		}
	}
}

// Sweep removes subscriptions marked dead and returns how many were removed
func (b *Broker) Sweep() int {
	b.mu.RLock()
	var dead []string
	for id, sub := range b.subs {
		if sub.dead.Load() {
			dead = append(dead, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range dead {
		b.Unsubscribe(id)
	}
	return len(dead)
}

// SubscriberCount returns the number of registered subscriptions
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// RunSweeper sweeps dead subscriptions on every heartbeat until ctx is done
func (b *Broker) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(b.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := b.Sweep(); removed > 0 {
				b.logger.Infof("Swept %d dead subscribers", removed)
			}
		}
	}
}

// Close unsubscribes everyone
func (b *Broker) Close() {
	b.mu.RLock()
	ids := make([]string, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	for _, id := range ids {
		b.Unsubscribe(id)
	}
}
