package fanout

import "sync/atomic"

// Subscription is a buffered stream of events for a set of topics.
type Subscription struct {
	id     string
	topics map[Topic]struct{} // nil means all topics
	ch     chan Event
	broker *Broker

	// closed is guarded by broker.mu.
	closed  bool
	dropped atomic.Uint64
}

// ID returns the unique subscription id.
func (s *Subscription) ID() string {
	return s.id
}

// C returns the event channel. It is closed when the subscription or the
// broker is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped returns how many events this subscription missed.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.broker.remove(s)
}

func (s *Subscription) wants(t Topic) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[t]
	return ok
}
