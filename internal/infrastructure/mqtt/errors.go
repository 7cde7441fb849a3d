package mqtt

import "errors"

// Use errors.Is to check for these in calling code.
var (
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means the broker rejected us; no client is returned.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrConnectTimeout means the first connect did not finish in time.
	// The returned client keeps retrying.
	ErrConnectTimeout = errors.New("mqtt: initial connect timed out")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
	ErrTimeout      = errors.New("mqtt: operation timed out")
)
