package light

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/prysmalight/prysma-core/internal/infrastructure/mqtt"
)

// Transport is the broker connection used by the Messenger.
// *mqtt.Client satisfies it.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
}

// Message is a decoded inbound device message.
type Message struct {
	Kind    Kind
	LightID string
	// Payload is one of *ConnectionPayload, *StatePayload,
	// *EffectListPayload or *ConfigPayload.
	Payload any
}

// Listener receives connectivity changes and decoded messages from the Messenger.
// Callbacks run on transport goroutines and must not block.
type Listener interface {
	OnConnected()
	OnDisconnected()
	OnMessage(msg Message)
}

// MessengerConfig configures topic layout and delivery.
type MessengerConfig struct {
	// Namespace is the first topic level. Empty selects mqtt.DefaultNamespace.
	Namespace string

	// QoS is used for subscriptions and commands.
	QoS byte
}

// Messenger is the device-facing half of the engine. It tracks broker
// connectivity, manages per-light subscriptions, publishes commands and
// turns inbound topic/bytes pairs into typed messages.
type Messenger struct {
	transport Transport
	topics    mqtt.Topics
	namespace string
	qos       byte
	connected atomic.Bool

	mu       sync.RWMutex
	listener Listener
	logger   Logger
}

// NewMessenger wires the Messenger to the transport's connect and
// disconnect callbacks. The initial connectivity is taken from the transport.
func NewMessenger(transport Transport, cfg MessengerConfig, logger Logger) *Messenger {
	ns := cfg.Namespace
	if ns == "" {
		ns = mqtt.DefaultNamespace
	}

	m := &Messenger{
		transport: transport,
		topics:    mqtt.Topics{Namespace: ns},
		namespace: ns,
		qos:       cfg.QoS,
		logger:    loggerOrNoop(logger),
	}
	// Callbacks first, so a connect landing in between is not missed.
	transport.SetOnConnect(m.handleConnect)
	transport.SetOnDisconnect(m.handleDisconnect)
	m.connected.Store(transport.IsConnected())
	return m
}

// SetListener registers the single consumer of events. It replaces any previous listener.
func (m *Messenger) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

func (m *Messenger) getListener() Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listener
}

// IsConnected reports the last connectivity level seen from the transport.
func (m *Messenger) IsConnected() bool {
	return m.connected.Load()
}

// Topic returns the topic for a light and suffix.
func (m *Messenger) Topic(lightID, suffix string) string {
	return m.topics.Light(lightID, suffix)
}

// Subscribe subscribes to every device topic of lightID concurrently, waits
// for all of them and returns the first failure. Topics that did subscribe
// stay subscribed.
func (m *Messenger) Subscribe(ctx context.Context, lightID string) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	if lightID == "" {
		return fmt.Errorf("%w: light id is required", ErrInvalidArgument)
	}

	var g errgroup.Group
	for _, suffix := range subscribedSuffixes {
		topic := m.topics.Light(lightID, suffix)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.transport.Subscribe(topic, m.qos, m.handleMessage); err != nil {
				return fmt.Errorf("subscribing to %s: %w", topic, m.mapTransportError(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Unsubscribe drops the device topics of lightID. It succeeds without doing
// anything when the broker is down, since a disconnect already dropped them.
func (m *Messenger) Unsubscribe(ctx context.Context, lightID string) error {
	if !m.IsConnected() {
		return nil
	}
	if lightID == "" {
		return fmt.Errorf("%w: light id is required", ErrInvalidArgument)
	}

	var g errgroup.Group
	for _, suffix := range subscribedSuffixes {
		topic := m.topics.Light(lightID, suffix)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.transport.Unsubscribe(topic); err != nil {
				return fmt.Errorf("unsubscribing from %s: %w", topic, m.mapTransportError(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Publish validates p and sends it to the light's command topic.
func (m *Messenger) Publish(ctx context.Context, lightID string, p *PublishPayload) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	if lightID == "" {
		return fmt.Errorf("%w: light id is required", ErrInvalidArgument)
	}
	if p == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(p)
	if err != nil {
		return err
	}

	topic := m.topics.Light(lightID, SuffixCommand)
	if err := m.transport.Publish(topic, data, m.qos, false); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, m.mapTransportError(err))
	}

	m.logger.Debug("light command published",
		"light_id", lightID,
		"mutation_id", p.MutationID,
	)
	return nil
}

// mapTransportError keeps the transport error and adds ErrNotConnected when
// the broker went away underneath the call.
func (m *Messenger) mapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if isTransportDown(err) {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return err
}

func isTransportDown(err error) bool {
	return errors.Is(err, mqtt.ErrNotConnected)
}

// handleMessage is the transport handler for every subscribed topic.
// Inbound problems are logged and never returned to the transport.
func (m *Messenger) handleMessage(topic string, payload []byte) error {
	r, ok := parseTopic(topic)
	if !ok || r.namespace != m.namespace {
		m.logger.Debug("ignoring message outside namespace", "topic", topic)
		return nil
	}

	kind, ok := lookupKind(r.suffix)
	if !ok {
		m.logger.Error("no route for topic", "topic", topic, "suffix", r.suffix)
		return nil
	}

	decoded, violations := Decode(kind, payload)
	if len(violations) > 0 {
		m.logger.Warn("dropping invalid device message",
			"topic", topic,
			"error", (&ValidationError{Violations: violations}).Error(),
		)
		return nil
	}

	if l := m.getListener(); l != nil {
		l.OnMessage(Message{Kind: kind, LightID: r.lightID, Payload: decoded})
	}
	return nil
}

func (m *Messenger) handleConnect() {
	m.connected.Store(true)
	m.logger.Info("light messenger connected")
	if l := m.getListener(); l != nil {
		l.OnConnected()
	}
}

func (m *Messenger) handleDisconnect(err error) {
	m.connected.Store(false)
	m.logger.Warn("light messenger disconnected", "error", err)
	if l := m.getListener(); l != nil {
		l.OnDisconnected()
	}
}
