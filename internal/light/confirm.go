package light

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prysmalight/prysma-core/internal/infrastructure/config"
)

// Confirmation selects when a commanded state becomes the stored state.
type Confirmation string

const (
	// ConfirmOptimistic stores the commanded state right after publishing.
	ConfirmOptimistic Confirmation = config.ConfirmOptimistic

	// ConfirmAck waits for the device to report a state carrying the
	// command's mutation id. The reconciler stores that report.
	ConfirmAck Confirmation = config.ConfirmAck
)

// DefaultAckTimeout bounds the wait in ConfirmAck mode when none is configured.
const DefaultAckTimeout = 3 * time.Second

// AckTracker correlates outbound mutation ids with inbound state reports.
// Safe for concurrent use.
type AckTracker struct {
	mu      sync.Mutex
	waiters map[uint32]chan LightState
}

// NewAckTracker creates an empty tracker.
func NewAckTracker() *AckTracker {
	return &AckTracker{waiters: make(map[uint32]chan LightState)}
}

// Register starts waiting for id. The returned cancel func must be called
// once the caller stops waiting.
func (a *AckTracker) Register(id uint32) (<-chan LightState, func()) {
	ch := make(chan LightState, 1)

	a.mu.Lock()
	a.waiters[id] = ch
	a.mu.Unlock()

	return ch, func() {
		a.mu.Lock()
		if a.waiters[id] == ch {
			delete(a.waiters, id)
		}
		a.mu.Unlock()
	}
}

// Resolve delivers state to the waiter for id and reports whether one existed.
func (a *AckTracker) Resolve(id uint32, state LightState) bool {
	a.mu.Lock()
	ch, ok := a.waiters[id]
	if ok {
		delete(a.waiters, id)
	}
	a.mu.Unlock()

	if ok {
		ch <- state
	}
	return ok
}

// Pending returns the number of outstanding waiters.
func (a *AckTracker) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.waiters)
}

// await blocks until the device echoes the mutation or timeout elapses.
func await(ctx context.Context, ch <-chan LightState, timeout time.Duration) (LightState, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-ch:
		return s, nil
	case <-timer.C:
		return LightState{}, ErrCommandTimeout
	case <-ctx.Done():
		return LightState{}, fmt.Errorf("waiting for acknowledgement: %w", ctx.Err())
	}
}
