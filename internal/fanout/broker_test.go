package fanout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.C():
		require.True(t, ok, "subscription channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func assertEmpty(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case ev := <-s.C():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestPublish_TopicFiltering(t *testing.T) {
	b := New(4)
	added := b.Subscribe("light.added")
	all := b.Subscribe()

	b.Publish("light.added", "kitchen")
	b.Publish("light.removed", "hall")

	ev := receive(t, added)
	assert.Equal(t, Topic("light.added"), ev.Topic)
	assert.Equal(t, "kitchen", ev.Payload)
	assert.False(t, ev.Time.IsZero())
	assertEmpty(t, added)

	assert.Equal(t, Topic("light.added"), receive(t, all).Topic)
	assert.Equal(t, Topic("light.removed"), receive(t, all).Topic)
}

func TestPublish_FullBufferDropsWithoutBlocking(t *testing.T) {
	b := New(1)
	slow := b.Subscribe()
	fast := b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Publish("light.changed", 1)
		<-fast.C()
		b.Publish("light.changed", 2)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	assert.Equal(t, 1, receive(t, slow).Payload)
	assertEmpty(t, slow)
	assert.Equal(t, uint64(1), slow.Dropped())
	assert.Equal(t, 2, receive(t, fast).Payload)

	published, dropped := b.Stats()
	assert.Equal(t, uint64(2), published)
	assert.Equal(t, uint64(1), dropped)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	b := New(1)
	s := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())
	require.NotEmpty(t, s.ID())

	s.Close()
	s.Close()

	assert.Equal(t, 0, b.SubscriberCount())
	_, ok := <-s.C()
	assert.False(t, ok, "channel should be closed")

	// Publishing after the subscriber left must not panic.
	b.Publish("light.added", nil)
}

func TestBroker_Close(t *testing.T) {
	b := New(1)
	s := b.Subscribe()

	b.Close()
	b.Close()

	_, ok := <-s.C()
	assert.False(t, ok)
	s.Close()

	late := b.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok, "subscribing to a closed broker yields a closed channel")

	b.Publish("light.added", nil)
	published, _ := b.Stats()
	assert.Zero(t, published)
}

func TestBroker_ConcurrentPublishAndClose(t *testing.T) {
	b := New(8)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := b.Subscribe("light.state_changed")
			for j := 0; j < 10; j++ {
				select {
				case <-s.C():
				default:
				}
			}
			s.Close()
		}()
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish("light.state_changed", n)
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestNew_DefaultBuffer(t *testing.T) {
	b := New(0)
	s := b.Subscribe()
	assert.Equal(t, DefaultBuffer, cap(s.ch))
}
