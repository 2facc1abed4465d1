package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/feedlink/internal/audit"
	"github.com/nerrad567/feedlink/internal/control"
	"github.com/nerrad567/feedlink/internal/scheduler"
)

var (
	_ scheduler.Observer = (*Recorder)(nil)
	_ control.Observer   = (*Recorder)(nil)
)

type fakeCounters struct {
	publish   map[string]int
	control   map[string]int
	polls     int
	reconnect map[string]int
	connected bool
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{
		publish:   map[string]int{},
		control:   map[string]int{},
		reconnect: map[string]int{},
	}
}

func label(feed string, err error) string {
	if err != nil {
		return feed + "/error"
	}
	return feed + "/ok"
}

func (f *fakeCounters) ObservePublish(feed string, err error) { f.publish[label(feed, err)]++ }
func (f *fakeCounters) ObserveControl(feed string, err error) { f.control[label(feed, err)]++ }
func (f *fakeCounters) ObservePollFailure()                   { f.polls++ }
func (f *fakeCounters) ObserveReconnect(err error)            { f.reconnect[label("", err)]++ }
func (f *fakeCounters) SetConnected(c bool)                   { f.connected = c }

type fakeMirror struct {
	readings []string
	controls []string
}

func (f *fakeMirror) WriteReading(feed string, v float64) {
	f.readings = append(f.readings, fmt.Sprintf("%s=%g", feed, v))
}

func (f *fakeMirror) WriteControl(feed string, v float64) {
	f.controls = append(f.controls, fmt.Sprintf("%s=%g", feed, v))
}

type fakeJournal struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (f *fakeJournal) Create(_ context.Context, e *audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeJournal) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return &audit.ListResult{}, nil
}

func (f *fakeJournal) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Action
	}
	return out
}

type captureLogger struct{ warned int }

func (c *captureLogger) Warn(string, ...any) { c.warned++ }

// =============================================================================
// Fan-out
// =============================================================================

func TestRecorder_NoSinks(t *testing.T) {
	r := NewRecorder(nil, nil, nil)

	r.Published("freemem", 1)
	r.PublishFailed("freemem", errors.New("boom"))
	r.PollFailed(errors.New("boom"))
	r.ControlApplied("pwm", 1)
	r.ControlRejected("pwm", control.ErrDecode)
	r.Connected()
	r.Disconnected(errors.New("eof"))
	r.Reconnected(nil)
	r.Startup("dev")
	r.Shutdown(nil)
}

func TestRecorder_PublishFanOut(t *testing.T) {
	counters := newFakeCounters()
	mirror := &fakeMirror{}
	journal := &fakeJournal{}
	r := NewRecorder(counters, mirror, journal)

	r.Published("freemem", 51200)
	r.PublishFailed("freemem", errors.New("not connected"))

	if counters.publish["freemem/ok"] != 1 || counters.publish["freemem/error"] != 1 {
		t.Errorf("publish counters = %v", counters.publish)
	}
	if len(mirror.readings) != 1 || mirror.readings[0] != "freemem=51200" {
		t.Errorf("readings = %v, want [freemem=51200]", mirror.readings)
	}
	got := journal.actions()
	if len(got) != 1 || got[0] != audit.ActionPublishFailed {
		t.Errorf("journal = %v, want [publish_failed]", got)
	}
	if journal.events[0].Feed != "freemem" || journal.events[0].Details["error"] != "not connected" {
		t.Errorf("event = %+v", journal.events[0])
	}
}

func TestRecorder_RepeatedPublishFailureJournalledOnce(t *testing.T) {
	journal := &fakeJournal{}
	r := NewRecorder(nil, nil, journal)

	err := errors.New("not connected")
	r.PublishFailed("freemem", err)
	r.PublishFailed("freemem", err)
	r.PublishFailed("freemem", err)
	if n := len(journal.actions()); n != 1 {
		t.Fatalf("journal entries = %d, want 1", n)
	}

	r.PublishFailed("freemem", errors.New("timeout"))
	if n := len(journal.actions()); n != 2 {
		t.Fatalf("journal entries = %d after a new error, want 2", n)
	}

	r.Published("freemem", 1)
	r.PublishFailed("freemem", errors.New("timeout"))
	if n := len(journal.actions()); n != 3 {
		t.Errorf("journal entries = %d after recovery, want 3", n)
	}
}

func TestRecorder_Control(t *testing.T) {
	counters := newFakeCounters()
	mirror := &fakeMirror{}
	journal := &fakeJournal{}
	r := NewRecorder(counters, mirror, journal)

	r.ControlApplied("pwm", 512)
	r.ControlRejected("pwm", fmt.Errorf("%w: %q", control.ErrDecode, "abc"))
	r.ControlRejected("other", control.ErrUnknownFeed)

	if counters.control["pwm/ok"] != 1 || counters.control["pwm/error"] != 1 || counters.control["other/error"] != 1 {
		t.Errorf("control counters = %v", counters.control)
	}
	if len(mirror.controls) != 1 || mirror.controls[0] != "pwm=512" {
		t.Errorf("controls = %v", mirror.controls)
	}
	got := journal.actions()
	if len(got) != 1 || got[0] != audit.ActionDecodeFailed {
		t.Errorf("journal = %v, want only the decode failure", got)
	}
}

func TestRecorder_SessionEvents(t *testing.T) {
	counters := newFakeCounters()
	journal := &fakeJournal{}
	r := NewRecorder(counters, nil, journal)

	r.Startup("v1")
	r.Connected()
	if !counters.connected {
		t.Error("Connected() should set the gauge")
	}
	r.Disconnected(errors.New("eof"))
	if counters.connected {
		t.Error("Disconnected() should clear the gauge")
	}
	r.Reconnected(errors.New("refused"))
	r.Reconnected(nil)
	if !counters.connected || counters.reconnect["/ok"] != 1 || counters.reconnect["/error"] != 1 {
		t.Errorf("reconnect counters = %v connected = %v", counters.reconnect, counters.connected)
	}
	r.PollFailed(errors.New("x"))
	if counters.polls != 1 {
		t.Errorf("polls = %d, want 1", counters.polls)
	}
	r.Shutdown(map[string]any{"published": 3})

	want := []string{
		audit.ActionStartup,
		audit.ActionConnected,
		audit.ActionDisconnected,
		audit.ActionReconnected,
		audit.ActionReconnected,
		audit.ActionShutdown,
	}
	got := journal.actions()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("journal = %v, want %v", got, want)
	}
	if journal.events[0].Details["version"] != "v1" {
		t.Errorf("startup details = %v", journal.events[0].Details)
	}
}

func TestRecorder_JournalErrorsAreLogged(t *testing.T) {
	logger := &captureLogger{}
	r := NewRecorder(nil, nil, &fakeJournal{err: errors.New("disk full")})
	r.SetLogger(logger)

	r.Connected()
	if logger.warned != 1 {
		t.Errorf("warned = %d, want 1", logger.warned)
	}
}
