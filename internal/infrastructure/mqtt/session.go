package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/feedlink/internal/infrastructure/config"
)

// State is the connection state of a Session.
type State int32

// Session connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Message is an inbound message waiting for dispatch.
type Message struct {
	Topic   string
	Payload []byte
}

// MessageHandler is the dispatch callback for inbound messages.
//
// It runs synchronously on the goroutine calling CheckMessage or
// WaitMessage. A panicking handler is recovered and logged.
type MessageHandler func(topic string, payload []byte)

// Session is a single MQTT session to one broker.
//
// Paho delivers inbound messages on its own goroutine. The session only
// queues them; they are dispatched to the handler from CheckMessage or
// WaitMessage, so the handler runs on the caller's goroutine.
//
// Thread Safety:
//   - Methods may be called from any goroutine, but the session is meant
//     to be driven by a single scheduling loop.
type Session struct {
	cfg      config.MQTTConfig
	clientID string

	// newClient builds the paho client for each connection attempt.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	client pahomqtt.Client
	state  atomic.Int32
	connMu sync.Mutex

	// subscriptions tracks topics for restoration after a reconnect.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	handler   MessageHandler
	handlerMu sync.RWMutex

	inbox   chan Message
	lost    chan struct{}
	dropped atomic.Uint64

	// Callbacks for connection events (optional).
	onConnect    func()
	onDisconnect func(err error)
	onReconnect  func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a disconnected Session.
//
// If cfg.Broker.ClientID is empty a random "client_<hex>" identifier is
// generated and kept for the lifetime of the session.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Session: Session ready for Connect
func New(cfg config.MQTTConfig) *Session {
	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = GenerateClientID()
	}

	inboxSize := cfg.InboxSize
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}

	return &Session{
		cfg:           cfg,
		clientID:      clientID,
		newClient:     pahomqtt.NewClient,
		subscriptions: make(map[string]byte),
		inbox:         make(chan Message, inboxSize),
		lost:          make(chan struct{}, 1),
		logger:        noopLogger{},
	}
}

// ClientID returns the identifier presented to the broker.
func (s *Session) ClientID() string {
	return s.clientID
}

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsConnected reports whether the session is in the Connected state.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Connect performs the MQTT handshake. A client left over from an earlier
// Connect is disconnected first, and a client whose handshake fails is
// torn down before returning.
//
// Returns:
//   - error: ErrConnectionFailed wrapping the cause, or nil
func (s *Session) Connect() error {
	if s.currentClient() != nil {
		s.closeClient()
	}
	s.setState(StateConnecting)

	opts := buildClientOptions(s.cfg, s.clientID)
	opts.SetConnectionLostHandler(func(c pahomqtt.Client, err error) {
		s.handleConnectionLost(c, err)
	})

	client := s.newClient(opts)
	timeout := durationOr(s.cfg.ConnectTimeout, defaultConnectTimeout)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	s.connMu.Lock()
	s.client = client
	s.connMu.Unlock()
	s.setState(StateConnected)

	// A loss signalled by a replaced client no longer applies.
	select {
	case <-s.lost:
	default:
	}

	s.getLogger().Info("mqtt connected", "broker", s.cfg.BrokerURL(), "client_id", s.clientID)

	s.callbackMu.RLock()
	callback := s.onConnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}

	return nil
}

// handleConnectionLost is called by paho when the connection of client
// drops. Losses reported by a client the session no longer uses are
// ignored.
func (s *Session) handleConnectionLost(client pahomqtt.Client, err error) {
	if client != s.currentClient() {
		s.getLogger().Info("ignoring connection loss from replaced mqtt client", "error", err)
		return
	}
	s.setState(StateDisconnected)

	select {
	case s.lost <- struct{}{}:
	default:
	}

	s.getLogger().Warn("mqtt connection lost", "error", err)

	s.callbackMu.RLock()
	callback := s.onDisconnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// reconnect tears down the current client, connects again and restores
// tracked subscriptions. It is only used by the robust policy.
func (s *Session) reconnect() error {
	s.closeClient()

	err := s.Connect()
	if err == nil {
		s.restoreSubscriptions()
	}

	s.callbackMu.RLock()
	callback := s.onReconnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}

	return err
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (s *Session) restoreSubscriptions() {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for topic, qos := range s.subscriptions {
		if err := s.subscribeOnce(topic, qos); err != nil {
			s.getLogger().Warn("restoring subscription failed", "topic", topic, "error", err)
		}
	}
}

// connectionDropped reports whether err means the transport is gone,
// as opposed to a rejected request.
func (s *Session) connectionDropped(err error) bool {
	if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrTimeout) || errors.Is(err, pahomqtt.ErrNotConnected) {
		return true
	}
	client := s.currentClient()
	return client == nil || !client.IsConnected()
}

// withRobustRetry runs op and, under the robust policy, reconnects and
// retries it once when the failure was caused by a dropped connection.
func (s *Session) withRobustRetry(name string, op func() error) error {
	err := op()
	if err == nil || !s.cfg.Robust || !s.connectionDropped(err) {
		return err
	}

	s.getLogger().Warn("mqtt "+name+" failed, reconnecting", "error", err)
	if rerr := s.reconnect(); rerr != nil {
		return fmt.Errorf("%w (reconnect: %w)", err, rerr)
	}
	return op()
}

func (s *Session) currentClient() pahomqtt.Client {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.client
}

func (s *Session) closeClient() {
	s.connMu.Lock()
	client := s.client
	s.client = nil
	s.connMu.Unlock()

	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
	s.setState(StateDisconnected)
}

// Disconnect closes the session. It is safe to call more than once and
// on a session that never connected.
func (s *Session) Disconnect() {
	if s.currentClient() == nil {
		s.setState(StateDisconnected)
		return
	}
	s.closeClient()
	s.getLogger().Info("mqtt disconnected", "client_id", s.clientID)
}

// ioTimeout returns the bound applied to every acknowledgement wait.
func (s *Session) ioTimeout() time.Duration {
	return durationOr(s.cfg.IOTimeout, defaultIOTimeout)
}

// waitToken waits for a paho token within the I/O timeout.
func (s *Session) waitToken(token pahomqtt.Token) error {
	timeout := s.ioTimeout()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
	return token.Error()
}

// Dropped returns the number of inbound messages discarded because the inbox was full.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// SetOnConnect sets a callback invoked after every successful handshake.
func (s *Session) SetOnConnect(callback func()) {
	s.callbackMu.Lock()
	s.onConnect = callback
	s.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the broker connection drops.
func (s *Session) SetOnDisconnect(callback func(err error)) {
	s.callbackMu.Lock()
	s.onDisconnect = callback
	s.callbackMu.Unlock()
}

// SetOnReconnect sets a callback invoked after every robust reconnect
// attempt, with the attempt's error (nil on success).
func (s *Session) SetOnReconnect(callback func(err error)) {
	s.callbackMu.Lock()
	s.onReconnect = callback
	s.callbackMu.Unlock()
}

// SetLogger sets a logger for connection events and handler panics.
func (s *Session) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}
