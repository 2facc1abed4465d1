package mqtt

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool { return !t.timeout }

func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.timeout {
		close(ch)
	}
	return ch
}

func (t *fakeToken) Error() error { return t.err }

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

var errBrokerDown = errors.New("broker unreachable")

// fakeClient is an in-memory paho client. Each *Fail counter makes the
// next N calls of that kind fail.
type fakeClient struct {
	mu sync.Mutex

	connected    bool
	connectFail  int
	connectStall bool
	publishFail  int
	publishStall bool

	connects    int
	disconnects int
	published   []Message
	subscribed  []string
	callbacks   map[string]pahomqtt.MessageHandler
	lastOptions *pahomqtt.ClientOptions
}

func newFakeClient() *fakeClient {
	return &fakeClient{callbacks: make(map[string]pahomqtt.MessageHandler)}
}

// factory returns a constructor that always yields this fake.
func (f *fakeClient) factory() func(*pahomqtt.ClientOptions) pahomqtt.Client {
	return func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		f.mu.Lock()
		f.lastOptions = opts
		f.mu.Unlock()
		return f
	}
}

// sequence is a client constructor that hands out a different fake on
// each connection attempt, reusing the last one once exhausted.
type sequence struct {
	mu    sync.Mutex
	fakes []*fakeClient
	built int
}

func newSequence(fakes ...*fakeClient) *sequence {
	return &sequence{fakes: fakes}
}

func (q *sequence) factory() func(*pahomqtt.ClientOptions) pahomqtt.Client {
	return func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		q.mu.Lock()
		i := min(q.built, len(q.fakes)-1)
		q.built++
		f := q.fakes[i]
		q.mu.Unlock()

		f.mu.Lock()
		f.lastOptions = opts
		f.mu.Unlock()
		return f
	}
}

func (q *sequence) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.built
}

// loseConnection drops the link and fires the connection lost handler the
// session registered on this client, as paho does.
func (f *fakeClient) loseConnection(err error) {
	f.mu.Lock()
	f.connected = false
	opts := f.lastOptions
	f.mu.Unlock()
	if opts != nil && opts.OnConnectionLost != nil {
		opts.OnConnectionLost(f, err)
	}
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakeClient) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectStall {
		return &fakeToken{timeout: true}
	}
	if f.connectFail > 0 {
		f.connectFail--
		return &fakeToken{err: errBrokerDown}
	}
	f.connected = true
	return &fakeToken{}
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
}

func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishStall {
		return &fakeToken{timeout: true}
	}
	if f.publishFail > 0 {
		f.publishFail--
		// A dropped link: paho reports not connected and the client is down.
		f.connected = false
		return &fakeToken{err: pahomqtt.ErrNotConnected}
	}
	if !f.connected {
		return &fakeToken{err: pahomqtt.ErrNotConnected}
	}
	f.published = append(f.published, Message{Topic: topic, Payload: payload.([]byte)})
	return &fakeToken{}
}

func (f *fakeClient) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return &fakeToken{err: pahomqtt.ErrNotConnected}
	}
	f.subscribed = append(f.subscribed, topic)
	f.callbacks[topic] = callback
	return &fakeToken{}
}

func (f *fakeClient) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		if tok := f.Subscribe(topic, qos, callback); tok.Error() != nil {
			return tok
		}
	}
	return &fakeToken{}
}

func (f *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.callbacks, t)
	}
	return &fakeToken{}
}

func (f *fakeClient) AddRoute(topic string, callback pahomqtt.MessageHandler) {
	f.mu.Lock()
	f.callbacks[topic] = callback
	f.mu.Unlock()
}

func (f *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// deliver simulates the broker sending a message on a subscribed topic.
func (f *fakeClient) deliver(topic, payload string) bool {
	f.mu.Lock()
	cb := f.callbacks[topic]
	f.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(f, &fakeMessage{topic: topic, payload: []byte(payload)})
	return true
}

func (f *fakeClient) counts() (connects, disconnects, published int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects, len(f.published)
}
