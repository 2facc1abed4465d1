package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publish or subscribe is attempted
	// while the session is not in the Connected state.
	ErrNotConnected = errors.New("mqtt: session not connected")

	// ErrConnectionFailed is returned when the handshake fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for any QoS other than 0.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (only 0 is supported)")

	// ErrInvalidTopic is returned when an empty or malformed topic is provided.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrTimeout is returned when an acknowledgement is not received within the I/O timeout.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
