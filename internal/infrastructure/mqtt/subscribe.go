package mqtt

import (
	"fmt"
)

// Subscribe registers handler for topic, which may contain + and # wildcards.
//
// The subscription lasts until Unsubscribe or until the connection drops;
// it is not restored automatically.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := waitToken(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		return err
	}

	c.subMu.Lock()
	c.subscriptions[topic] = qos
	c.subMu.Unlock()

	return nil
}

// Unsubscribe stops delivery for a topic previously passed to Subscribe.
// Messages already in flight may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	return waitToken(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of topics subscribed in this session.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether topic (exact string) is subscribed.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}
