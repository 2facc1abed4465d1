package mqtt

import (
	"fmt"
)

// Publish sends one message.
//
// Parameters:
//   - topic: The topic to publish to, typically Topic.String()
//   - payload: The message payload (a decimal string for feed values)
//   - qos: Quality of Service level; only 0 (at most once) is supported
//
// Under the robust policy a failure caused by a dropped connection
// triggers one reconnect and one retry before the error is returned.
//
// Returns:
//   - error: nil on success; ErrNotConnected, ErrPublishFailed,
//     ErrInvalidTopic or ErrInvalidQoS otherwise
//
// Example:
//
//	topic, _ := mqtt.NewTopic("alice", "temperature")
//	err := session.Publish(topic.String(), []byte("23.5"), 0)
func (s *Session) Publish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	return s.withRobustRetry("publish", func() error {
		return s.publishOnce(topic, payload, qos)
	})
}

func (s *Session) publishOnce(topic string, payload []byte, qos byte) error {
	client := s.currentClient()
	if !s.IsConnected() || client == nil {
		return ErrNotConnected
	}

	if err := s.waitToken(client.Publish(topic, qos, false, payload)); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
