package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe registers interest in a topic at the configured QoS.
//
// It must be called after Connect. Subscribed topics are tracked and
// restored after a robust reconnect. Messages are queued until
// CheckMessage or WaitMessage dispatches them to the handler set with
// SetHandler.
//
// Returns:
//   - error: nil on success; ErrNotConnected, ErrSubscribeFailed or
//     ErrInvalidTopic otherwise
func (s *Session) Subscribe(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	qos := byte(s.cfg.QoS)
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	err := s.withRobustRetry("subscribe", func() error {
		return s.subscribeOnce(topic, qos)
	})
	if err != nil {
		return err
	}

	s.subMu.Lock()
	s.subscriptions[topic] = qos
	s.subMu.Unlock()

	return nil
}

func (s *Session) subscribeOnce(topic string, qos byte) error {
	client := s.currentClient()
	if !s.IsConnected() || client == nil {
		return ErrNotConnected
	}

	if err := s.waitToken(client.Subscribe(topic, qos, s.enqueue)); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (s *Session) SubscriptionCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscriptions)
}

// HasSubscription checks if the exact topic is tracked.
func (s *Session) HasSubscription(topic string) bool {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	_, exists := s.subscriptions[topic]
	return exists
}

// SetHandler registers the single dispatch callback, replacing any previous one.
func (s *Session) SetHandler(handler MessageHandler) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

// enqueue is the paho callback. It never blocks: when the inbox is full
// the new message is dropped, which QoS 0 allows.
func (s *Session) enqueue(_ pahomqtt.Client, msg pahomqtt.Message) {
	m := Message{Topic: msg.Topic(), Payload: append([]byte(nil), msg.Payload()...)}
	select {
	case s.inbox <- m:
	default:
		n := s.dropped.Add(1)
		s.getLogger().Warn("inbox full, message dropped", "topic", m.Topic, "dropped_total", n)
	}
}

// CheckMessage dispatches one queued message, if any, and returns immediately.
//
// Returns:
//   - bool: true if a message was dispatched
//   - error: ErrNotConnected when nothing is queued and the session is
//     down (after one reconnect attempt under the robust policy)
func (s *Session) CheckMessage() (bool, error) {
	select {
	case msg := <-s.inbox:
		s.dispatch(msg)
		return true, nil
	default:
	}

	if s.IsConnected() {
		return false, nil
	}
	if !s.cfg.Robust {
		return false, ErrNotConnected
	}
	if err := s.reconnect(); err != nil {
		return false, fmt.Errorf("%w (reconnect: %w)", ErrNotConnected, err)
	}
	return false, nil
}

// WaitMessage blocks until one message arrives and dispatches it.
//
// Returns:
//   - error: ctx.Err() on cancellation; ErrNotConnected if the connection
//     drops and cannot be restored
func (s *Session) WaitMessage(ctx context.Context) error {
	for {
		// Already-queued messages are delivered even if the link is down.
		select {
		case msg := <-s.inbox:
			s.dispatch(msg)
			return nil
		default:
		}

		if !s.IsConnected() {
			if !s.cfg.Robust {
				return ErrNotConnected
			}
			if err := s.reconnect(); err != nil {
				return fmt.Errorf("%w (reconnect: %w)", ErrNotConnected, err)
			}
		}

		select {
		case msg := <-s.inbox:
			s.dispatch(msg)
			return nil
		case <-s.lost:
			// Re-evaluate the connection state.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch runs the handler with panic recovery.
func (s *Session) dispatch(msg Message) {
	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()

	if handler == nil {
		s.getLogger().Warn("no handler set, message discarded", "topic", msg.Topic)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.getLogger().Error("MQTT handler panic recovered",
				"topic", msg.Topic,
				"panic", r,
			)
		}
	}()

	handler(msg.Topic, msg.Payload)
}
