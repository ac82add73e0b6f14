package mqtt

import "errors"

// Errors returned by the broker client. Failures that concern one topic
// carry that topic in the wrapped message.
var (
	// ErrNotConnected is returned while the broker link is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the first connect attempt fails.
	// Later drops are handled by paho's auto-reconnect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed   = errors.New("mqtt: publish failed")
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrHandlerFailed wraps an error returned by a message handler. It is
	// logged, never returned to the broker.
	ErrHandlerFailed = errors.New("mqtt: message handler failed")

	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic, or for a publish
	// topic that contains a + or # wildcard.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
