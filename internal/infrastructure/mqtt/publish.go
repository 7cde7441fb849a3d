package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker acknowledgement
// (QoS 1/2) or for the write to complete (QoS 0).
//
// Light commands are never retained: a device coming back online must not
// replay a stale command.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return waitToken(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}
