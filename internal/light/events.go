package light

import "github.com/prysmalight/prysma-core/internal/fanout"

// Fan-out topics published by the service and the reconciler.
const (
	TopicChanged      fanout.Topic = "light.changed"
	TopicStateChanged fanout.Topic = "light.state_changed"
	TopicAdded        fanout.Topic = "light.added"
	TopicRemoved      fanout.Topic = "light.removed"
)

// Topics lists every light fan-out topic.
var Topics = []fanout.Topic{TopicChanged, TopicStateChanged, TopicAdded, TopicRemoved}

// Publisher is the fan-out side used by this package. *fanout.Broker satisfies it.
type Publisher interface {
	Publish(topic fanout.Topic, payload any)
}

// notifier publishes typed light events. A nil publisher discards them.
type notifier struct {
	pub Publisher
}

func (n notifier) changed(l *Light) {
	if n.pub != nil {
		n.pub.Publish(TopicChanged, l.Clone())
	}
}

func (n notifier) stateChanged(s LightState) {
	if n.pub != nil {
		n.pub.Publish(TopicStateChanged, s)
	}
}

func (n notifier) added(l *Light) {
	if n.pub != nil {
		n.pub.Publish(TopicAdded, l.Clone())
	}
}

func (n notifier) removed(l *Light) {
	if n.pub != nil {
		n.pub.Publish(TopicRemoved, l.Clone())
	}
}
