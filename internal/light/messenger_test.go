package light

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type recordingListener struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	messages     []Message
}

func (r *recordingListener) OnConnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
}

func (r *recordingListener) OnDisconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected++
}

func (r *recordingListener) OnMessage(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func newTestMessenger(connected bool) (*Messenger, *fakeTransport, *recordingListener) {
	tr := newFakeTransport(connected)
	m := NewMessenger(tr, MessengerConfig{Namespace: "prysmalight", QoS: 1}, nil)
	l := &recordingListener{}
	m.SetListener(l)
	return m, tr, l
}

func TestMessenger_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		m, _, _ := newTestMessenger(false)
		if err := m.Subscribe(ctx, "desk"); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		m, _, _ := newTestMessenger(true)
		if err := m.Subscribe(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Subscribe() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("subscribes every device topic", func(t *testing.T) {
		m, tr, _ := newTestMessenger(true)
		if err := m.Subscribe(ctx, "desk"); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		for _, suffix := range []string{"connected", "state", "effects", "config"} {
			if !tr.hasSubscription("prysmalight/desk/" + suffix) {
				t.Errorf("missing subscription for %s", suffix)
			}
		}
		if tr.subscriptionCount() != 4 {
			t.Errorf("subscriptionCount() = %d, want 4", tr.subscriptionCount())
		}
	})

	t.Run("one failure fails the call and keeps the rest", func(t *testing.T) {
		m, tr, _ := newTestMessenger(true)
		boom := errors.New("broker refused")
		tr.subscribeErr["prysmalight/desk/effects"] = boom

		err := m.Subscribe(ctx, "desk")
		if !errors.Is(err, boom) {
			t.Fatalf("Subscribe() error = %v, want %v", err, boom)
		}
		eventually(t, func() bool { return tr.subscriptionCount() == 3 }, "other topics should stay subscribed")
	})
}

func TestMessenger_Unsubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op when disconnected", func(t *testing.T) {
		m, _, _ := newTestMessenger(false)
		if err := m.Unsubscribe(ctx, "desk"); err != nil {
			t.Errorf("Unsubscribe() error = %v, want nil", err)
		}
	})

	t.Run("drops every device topic", func(t *testing.T) {
		m, tr, _ := newTestMessenger(true)
		if err := m.Subscribe(ctx, "desk"); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if err := m.Unsubscribe(ctx, "desk"); err != nil {
			t.Fatalf("Unsubscribe() error = %v", err)
		}
		if tr.subscriptionCount() != 0 {
			t.Errorf("subscriptionCount() = %d, want 0", tr.subscriptionCount())
		}
	})

	t.Run("empty id", func(t *testing.T) {
		m, _, _ := newTestMessenger(true)
		if err := m.Unsubscribe(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Unsubscribe() error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestMessenger_Publish(t *testing.T) {
	ctx := context.Background()
	valid := &PublishPayload{MutationID: 9, Name: "desk", Brightness: ptr(50)}

	t.Run("not connected", func(t *testing.T) {
		m, _, _ := newTestMessenger(false)
		if err := m.Publish(ctx, "desk", valid); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Publish() error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		m, _, _ := newTestMessenger(true)
		if err := m.Publish(ctx, "", valid); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Publish() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("invalid payload is not sent", func(t *testing.T) {
		m, tr, _ := newTestMessenger(true)
		err := m.Publish(ctx, "desk", &PublishPayload{Name: "desk", Speed: ptr(9)})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Publish() error = %v, want ErrValidation", err)
		}
		if len(tr.publishedMessages()) != 0 {
			t.Error("invalid payload reached the transport")
		}
	})

	t.Run("writes to the command topic", func(t *testing.T) {
		m, tr, _ := newTestMessenger(true)
		if err := m.Publish(ctx, "desk", valid); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		msgs := tr.publishedMessages()
		if len(msgs) != 1 {
			t.Fatalf("published %d messages, want 1", len(msgs))
		}
		got := msgs[0]
		if got.topic != "prysmalight/desk/command" || got.qos != 1 || got.retained {
			t.Errorf("published %+v", got)
		}
		var body PublishPayload
		if err := json.Unmarshal(got.payload, &body); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		if body.MutationID != 9 || *body.Brightness != 50 {
			t.Errorf("payload = %+v", body)
		}
	})

	t.Run("transport drop maps to ErrNotConnected", func(t *testing.T) {
		m, tr, _ := newTestMessenger(true)
		tr.mu.Lock()
		tr.connected = false
		tr.mu.Unlock()

		if err := m.Publish(ctx, "desk", valid); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Publish() error = %v, want ErrNotConnected", err)
		}
	})
}

func TestMessenger_InboundRouting(t *testing.T) {
	m, _, l := newTestMessenger(true)

	deliver := func(topic, payload string) {
		if err := m.handleMessage(topic, []byte(payload)); err != nil {
			t.Fatalf("handleMessage(%s) error = %v", topic, err)
		}
	}

	deliver("prysmalight/desk/state", `{"name":"desk","state":"OFF"}`)
	deliver("prysmalight/desk/connected", `{"name":"desk","connection":"2"}`)
	deliver("prysmalight/desk/effects", `{"name":"desk","effectList":["None","Rainbow"]}`)
	deliver("prysmalight/desk/hello", `{"id":"desk","name":"desk","version":"1","hardware":"esp","colorOrder":"GRB","stripType":"WS2812","ipAddress":"10.0.0.2","macAddress":"aa:bb:cc:dd:ee:ff","numLeds":30,"udpPort":7778}`)

	// Each of these is dropped without reaching the listener.
	deliver("otherspace/desk/state", `{"name":"desk","state":"ON"}`)
	deliver("prysmalight", `{}`)
	deliver("prysmalight/desk/unknown", `{}`)
	deliver("prysmalight/desk/extra/state", `{"name":"desk","state":"ON"}`)
	deliver("prysmalight/desk/state", `not json`)
	deliver("prysmalight/desk/state", `{"name":"desk","brightness":500}`)

	l.mu.Lock()
	defer l.mu.Unlock()

	wantKinds := []Kind{KindState, KindConnected, KindEffectList, KindDiscoveryResponse}
	if len(l.messages) != len(wantKinds) {
		t.Fatalf("listener got %d messages, want %d: %+v", len(l.messages), len(wantKinds), l.messages)
	}
	for i, want := range wantKinds {
		if l.messages[i].Kind != want || l.messages[i].LightID != "desk" {
			t.Errorf("message %d = %+v, want kind %s", i, l.messages[i], want)
		}
	}
	if _, ok := l.messages[3].Payload.(*ConfigPayload); !ok {
		t.Errorf("discovery payload type = %T", l.messages[3].Payload)
	}
}

func TestMessenger_Connectivity(t *testing.T) {
	m, tr, l := newTestMessenger(false)
	if m.IsConnected() {
		t.Fatal("IsConnected() = true before connect")
	}

	tr.connect()
	if !m.IsConnected() {
		t.Error("IsConnected() = false after connect")
	}

	tr.disconnect()
	if m.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected != 1 || l.disconnected != 1 {
		t.Errorf("listener saw %d connects, %d disconnects", l.connected, l.disconnected)
	}
}

// earlyConnectTransport comes up while the connect callback is being
// registered, before the callback is stored.
type earlyConnectTransport struct {
	*fakeTransport
}

func (e earlyConnectTransport) SetOnConnect(cb func()) {
	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	e.fakeTransport.SetOnConnect(cb)
}

func TestNewMessenger_ConnectDuringRegistration(t *testing.T) {
	tr := earlyConnectTransport{newFakeTransport(false)}
	m := NewMessenger(tr, MessengerConfig{Namespace: "prysmalight", QoS: 1}, nil)

	if !m.IsConnected() {
		t.Error("IsConnected() = false, want the connect seen during setup")
	}
}
