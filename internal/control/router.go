package control

import (
	"fmt"

	"github.com/nerrad567/feedlink/internal/infrastructure/mqtt"
)

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Observer is told about every inbound message outcome.
type Observer interface {
	ControlApplied(feed string, value float64)
	ControlRejected(feed string, err error)
}

type noopObserver struct{}

func (noopObserver) ControlApplied(string, float64) {}
func (noopObserver) ControlRejected(string, error)  {}

// Router is the session's single message handler. It resolves the feed
// from the topic and hands the payload to the bound Action.
//
// Handle never fails: decode and actuator errors are logged and reported
// to the Observer, and the previous output state is kept.
type Router struct {
	actions  map[string]Action
	logger   Logger
	observer Observer
}

// NewRouter creates a Router with no bound feeds.
func NewRouter() *Router {
	return &Router{
		actions:  make(map[string]Action),
		logger:   noopLogger{},
		observer: noopObserver{},
	}
}

// Bind routes messages for feed to action, replacing any previous binding.
func (r *Router) Bind(feed string, action Action) {
	r.actions[feed] = action
}

// SetLogger sets the logger used for applied and rejected messages.
func (r *Router) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetObserver sets the receiver of message outcomes.
func (r *Router) SetObserver(observer Observer) {
	if observer != nil {
		r.observer = observer
	}
}

// Handle dispatches one inbound message. It matches mqtt.MessageHandler.
func (r *Router) Handle(topic string, payload []byte) {
	feed := topic
	if t, err := mqtt.ParseTopic(topic); err == nil {
		feed = t.Feed()
	}

	value, err := r.apply(feed, payload)
	if err != nil {
		r.logger.Warn("control message rejected", "topic", topic, "error", err)
		r.observer.ControlRejected(feed, err)
		return
	}

	r.logger.Info("control message applied", "feed", feed, "value", value)
	r.observer.ControlApplied(feed, value)
}

func (r *Router) apply(feed string, payload []byte) (float64, error) {
	action, ok := r.actions[feed]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownFeed, feed)
	}
	return action.Apply(feed, payload)
}
