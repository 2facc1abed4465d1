package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/feedlink/internal/audit"
	"github.com/nerrad567/feedlink/internal/control"
)

const journalTimeout = 2 * time.Second

// Journal sources.
const (
	SourceMain      = "main"
	SourceSession   = "mqtt"
	SourceScheduler = "scheduler"
	SourceControl   = "control"
)

// Counters receives metric observations. Satisfied by *metrics.Metrics.
type Counters interface {
	ObservePublish(feed string, err error)
	ObserveControl(feed string, err error)
	ObservePollFailure()
	ObserveReconnect(err error)
	SetConnected(connected bool)
}

// Mirror receives values for time-series storage. Satisfied by *influxdb.Client.
type Mirror interface {
	WriteReading(feed string, value float64)
	WriteControl(feed string, value float64)
}

// Logger interface for optional logging support.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder implements scheduler.Observer and control.Observer and
// provides the session connection callbacks.
type Recorder struct {
	counters Counters
	mirror   Mirror
	journal  audit.Repository
	logger   Logger

	// lastPublishErr suppresses repeated journal entries while a feed
	// keeps failing with the same error.
	lastPublishErr map[string]string
	mu             sync.Mutex
}

// NewRecorder creates a Recorder. Any sink may be nil.
func NewRecorder(counters Counters, mirror Mirror, journal audit.Repository) *Recorder {
	return &Recorder{
		counters:       counters,
		mirror:         mirror,
		journal:        journal,
		logger:         noopLogger{},
		lastPublishErr: make(map[string]string),
	}
}

// SetLogger sets a logger for journal write failures.
func (r *Recorder) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Published records a successful publication.
func (r *Recorder) Published(feed string, value float64) {
	if r.counters != nil {
		r.counters.ObservePublish(feed, nil)
	}
	if r.mirror != nil {
		r.mirror.WriteReading(feed, value)
	}

	r.mu.Lock()
	delete(r.lastPublishErr, feed)
	r.mu.Unlock()
}

// PublishFailed records a failed publication. The journal gets one entry
// per distinct error in a run of failures on the same feed.
func (r *Recorder) PublishFailed(feed string, err error) {
	if r.counters != nil {
		r.counters.ObservePublish(feed, err)
	}

	r.mu.Lock()
	repeated := r.lastPublishErr[feed] == err.Error()
	r.lastPublishErr[feed] = err.Error()
	r.mu.Unlock()

	if !repeated {
		r.record(audit.ActionPublishFailed, feed, SourceScheduler, err)
	}
}

// PollFailed records a failed message poll.
func (r *Recorder) PollFailed(_ error) {
	if r.counters != nil {
		r.counters.ObservePollFailure()
	}
}

// ControlApplied records an applied control value.
func (r *Recorder) ControlApplied(feed string, value float64) {
	if r.counters != nil {
		r.counters.ObserveControl(feed, nil)
	}
	if r.mirror != nil {
		r.mirror.WriteControl(feed, value)
	}
}

// ControlRejected records a control message that could not be applied.
// Only undecodable payloads are journalled.
func (r *Recorder) ControlRejected(feed string, err error) {
	if r.counters != nil {
		r.counters.ObserveControl(feed, err)
	}
	if errors.Is(err, control.ErrDecode) {
		r.record(audit.ActionDecodeFailed, feed, SourceControl, err)
	}
}

// Connected is the session connect callback.
func (r *Recorder) Connected() {
	if r.counters != nil {
		r.counters.SetConnected(true)
	}
	r.record(audit.ActionConnected, "", SourceSession, nil)
}

// ConnectFailed records a failed initial connection.
func (r *Recorder) ConnectFailed(err error) {
	r.record(audit.ActionConnectFailed, "", SourceSession, err)
}

// Disconnected is the session connection-lost callback.
func (r *Recorder) Disconnected(err error) {
	if r.counters != nil {
		r.counters.SetConnected(false)
	}
	r.record(audit.ActionDisconnected, "", SourceSession, err)
}

// Reconnected is the session reconnect callback.
func (r *Recorder) Reconnected(err error) {
	if r.counters != nil {
		r.counters.ObserveReconnect(err)
		r.counters.SetConnected(err == nil)
	}
	r.record(audit.ActionReconnected, "", SourceSession, err)
}

// Startup records process start.
func (r *Recorder) Startup(version string) {
	r.recordDetails(audit.ActionStartup, "", SourceMain, map[string]any{"version": version})
}

// Shutdown records process stop with the final loop counters.
func (r *Recorder) Shutdown(details map[string]any) {
	if r.counters != nil {
		r.counters.SetConnected(false)
	}
	r.recordDetails(audit.ActionShutdown, "", SourceMain, details)
}

func (r *Recorder) record(action, feed, source string, err error) {
	var details map[string]any
	if err != nil {
		details = map[string]any{"error": err.Error()}
	}
	r.recordDetails(action, feed, source, details)
}

func (r *Recorder) recordDetails(action, feed, source string, details map[string]any) {
	if r.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	event := &audit.Event{Action: action, Feed: feed, Source: source, Details: details}
	if err := r.journal.Create(ctx, event); err != nil {
		r.logger.Warn("journal write failed", "action", action, "error", err)
	}
}
