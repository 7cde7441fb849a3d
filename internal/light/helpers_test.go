package light

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prysmalight/prysma-core/internal/fanout"
	"github.com/prysmalight/prysma-core/internal/infrastructure/database"
	"github.com/prysmalight/prysma-core/internal/infrastructure/mqtt"
	_ "github.com/prysmalight/prysma-core/migrations"
)

// openTestDB returns a migrated in-memory database.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

type publishedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeTransport is an in-process stand-in for the MQTT client.
type fakeTransport struct {
	mu           sync.Mutex
	connected    bool
	handlers     map[string]mqtt.MessageHandler
	published    []publishedMsg
	unsubscribed []string
	subscribeErr map[string]error
	publishErr   error
	onConnect    func()
	onDisconnect func(error)
}

func newFakeTransport(connected bool) *fakeTransport {
	return &fakeTransport{
		connected:    connected,
		handlers:     make(map[string]mqtt.MessageHandler),
		subscribeErr: make(map[string]error),
	}
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return mqtt.ErrNotConnected
	}
	if err := f.subscribeErr[topic]; err != nil {
		return err
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return mqtt.ErrNotConnected
	}
	delete(f.handlers, topic)
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return mqtt.ErrNotConnected
	}
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) SetOnConnect(cb func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = cb
}

func (f *fakeTransport) SetOnDisconnect(cb func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = cb
}

// connect simulates the broker (re)connecting.
func (f *fakeTransport) connect() {
	f.mu.Lock()
	f.connected = true
	cb := f.onConnect
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// disconnect simulates a lost connection. Clean sessions drop every subscription.
func (f *fakeTransport) disconnect() {
	f.mu.Lock()
	f.connected = false
	clear(f.handlers)
	cb := f.onDisconnect
	f.mu.Unlock()
	if cb != nil {
		cb(errors.New("connection lost"))
	}
}

// deliver hands a message to the handler subscribed on topic.
func (f *fakeTransport) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h == nil {
		t.Fatalf("no subscription for %s", topic)
	}
	if err := h(topic, []byte(payload)); err != nil {
		t.Fatalf("handler(%s) error = %v", topic, err)
	}
}

func (f *fakeTransport) hasSubscription(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

func (f *fakeTransport) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeTransport) publishedMessages() []publishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMsg(nil), f.published...)
}

// engine is a fully wired Messenger, Reconciler and Service.
type engine struct {
	db         *database.DB
	repo       *SQLiteRepository
	history    *SQLiteHistoryRepository
	transport  *fakeTransport
	messenger  *Messenger
	reconciler *Reconciler
	service    *Service
	broker     *fanout.Broker
	acks       *AckTracker
}

type engineOption func(*ServiceDeps)

func withConfirmation(c Confirmation, timeout time.Duration) engineOption {
	return func(d *ServiceDeps) {
		d.Confirmation = c
		d.AckTimeout = timeout
	}
}

func newEngine(t *testing.T, connected bool, opts ...engineOption) *engine {
	t.Helper()

	db := openTestDB(t)
	e := &engine{
		db:        db,
		repo:      NewSQLiteRepository(db),
		history:   NewSQLiteHistoryRepository(db),
		transport: newFakeTransport(connected),
		broker:    fanout.New(64),
		acks:      NewAckTracker(),
	}
	t.Cleanup(e.broker.Close)

	locks := &KeyedLocker{}
	e.messenger = NewMessenger(e.transport, MessengerConfig{Namespace: "prysmalight", QoS: 1}, nil)
	e.reconciler = NewReconciler(ReconcilerDeps{
		Repo:      e.repo,
		Messenger: e.messenger,
		Locks:     locks,
		Publisher: e.broker,
		History:   e.history,
		Acks:      e.acks,
	})

	deps := ServiceDeps{
		Repo:      e.repo,
		Messenger: e.messenger,
		Locks:     locks,
		Publisher: e.broker,
		History:   e.history,
		Acks:      e.acks,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.service = NewService(deps)

	e.reconciler.Start(context.Background())
	t.Cleanup(e.reconciler.Stop)
	e.waitIdle(t)
	return e
}

// waitIdle blocks until the reconciler has handled every queued event.
func (e *engine) waitIdle(t *testing.T) {
	t.Helper()
	eventually(t, func() bool { return e.reconciler.Backlog() == 0 }, "reconciler did not drain its queue")
}

// setConnected writes the device connected flag directly.
func (e *engine) setConnected(t *testing.T, id string, connected bool) {
	t.Helper()
	s, err := e.repo.GetState(context.Background(), id)
	if err != nil {
		t.Fatalf("GetState(%s) error = %v", id, err)
	}
	s.Connected = connected
	if err := e.repo.UpdateState(context.Background(), *s); err != nil {
		t.Fatalf("UpdateState(%s) error = %v", id, err)
	}
}

func nextEvent(t *testing.T, sub *fanout.Subscription) fanout.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fan-out event")
		return fanout.Event{}
	}
}

func noEvent(t *testing.T, sub *fanout.Subscription, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event %s: %+v", ev.Topic, ev.Payload)
	case <-time.After(wait):
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func ptr[T any](v T) *T {
	return &v
}
