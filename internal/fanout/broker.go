package fanout

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscription channel capacity used when none is given.
const DefaultBuffer = 64

// Topic names a class of events, e.g. "light.added".
type Topic string

// Event is one published message.
type Event struct {
	Topic   Topic
	Payload any
	Time    time.Time
}

// Logger defines the logging interface used by the Broker.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Broker delivers published events to matching subscriptions.
// Safe for concurrent use.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	closed bool
	logger Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a Broker whose subscriptions buffer up to buffer events.
// A non-positive buffer selects DefaultBuffer.
func New(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used to report dropped events.
func (b *Broker) SetLogger(logger Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
}

// Subscribe registers interest in topics. With no topics the subscription
// receives every event. Subscribing to a closed broker returns a
// subscription whose channel is already closed.
func (b *Broker) Subscribe(topics ...Topic) *Subscription {
	s := &Subscription{
		id:     uuid.NewString(),
		ch:     make(chan Event, b.buffer),
		broker: b,
	}
	if len(topics) > 0 {
		s.topics = make(map[Topic]struct{}, len(topics))
		for _, t := range topics {
			s.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		close(s.ch)
		return s
	}
	b.subs[s.id] = s
	return s
}

// Publish sends payload to every subscription interested in topic.
// It never blocks; a subscriber with a full buffer misses the event.
func (b *Broker) Publish(topic Topic, payload any) {
	ev := Event{Topic: topic, Payload: payload, Time: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	b.published.Add(1)
	for _, s := range b.subs {
		if !s.wants(topic) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
			s.dropped.Add(1)
			b.logger.Warn("fan-out buffer full, event dropped",
				"subscription", s.id,
				"topic", string(topic),
			)
		}
	}
}

// SubscriberCount returns the number of open subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stats returns the number of published and dropped deliveries.
func (b *Broker) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// Close closes every subscription. Later publishes are ignored.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		s.closed = true
		close(s.ch)
		delete(b.subs, id)
	}
	b.logger.Debug("fan-out broker closed")
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(b.subs, s.id)
	close(s.ch)
}
