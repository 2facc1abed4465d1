package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/feedlink/internal/control"
	"github.com/nerrad567/feedlink/internal/infrastructure/config"
)

// ErrInvalidSchedule is returned by New for unusable timings.
var ErrInvalidSchedule = errors.New("scheduler: invalid schedule")

// Policy decides what happens to the publish timer after a failed publish.
type Policy string

// Publish failure policies.
const (
	// PolicySkip resets a feed's timer regardless of outcome; a failed
	// reading is not retried until the next period.
	PolicySkip Policy = config.FailurePolicySkip

	// PolicyRetry keeps a failed feed's timer expired, so that feed alone
	// is attempted again on the next iteration. Other feeds keep their
	// own period.
	PolicyRetry Policy = config.FailurePolicyRetry
)

// Session is the part of the MQTT session the loop drives.
type Session interface {
	Publish(topic string, payload []byte, qos byte) error
	CheckMessage() (bool, error)
	WaitMessage(ctx context.Context) error
	Disconnect()
}

// Reader produces one reading per call.
type Reader interface {
	Read() (float64, error)
}

// Publication binds a feed topic to its reading source.
type Publication struct {
	Feed   string
	Topic  string
	Sensor Reader
}

// Observer is told about publish and poll outcomes.
type Observer interface {
	Published(feed string, value float64)
	PublishFailed(feed string, err error)
	PollFailed(err error)
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

type noopObserver struct{}

func (noopObserver) Published(string, float64)   {}
func (noopObserver) PublishFailed(string, error) {}
func (noopObserver) PollFailed(error)            {}

// Stats counts loop activity since Run started.
type Stats struct {
	Iterations      uint64
	Published       uint64
	PublishFailures uint64
	Delivered       uint64
	PollFailures    uint64
}

// Loop is the scheduling loop. It owns the timer state and, once Run is
// called, the session.
type Loop struct {
	session      Session
	publications []Publication
	period       time.Duration
	poll         time.Duration
	policy       Policy

	clock    Clock
	logger   Logger
	observer Observer

	// elapsed holds, per publication, the time accumulated since its
	// last completed publish.
	elapsed []time.Duration
	stats   Stats
}

// New creates a Loop.
//
// Parameters:
//   - session: Connected session; Run disconnects it on return
//   - cfg: Publish period, poll interval and failure policy
//   - publications: Feeds to publish each period, in order; none selects
//     subscribe-only mode
//
// Returns:
//   - *Loop: Loop ready to Run
//   - error: ErrInvalidSchedule if the timings cannot work
func New(session Session, cfg config.ScheduleConfig, publications []Publication) (*Loop, error) {
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", ErrInvalidSchedule)
	}
	if len(publications) > 0 {
		if cfg.PublishPeriod <= 0 {
			return nil, fmt.Errorf("%w: publish period must be positive", ErrInvalidSchedule)
		}
		if cfg.PollInterval > cfg.PublishPeriod {
			return nil, fmt.Errorf("%w: poll interval %v exceeds publish period %v",
				ErrInvalidSchedule, cfg.PollInterval, cfg.PublishPeriod)
		}
	}

	policy := Policy(cfg.OnPublishFailure)
	switch policy {
	case "":
		policy = PolicySkip
	case PolicySkip, PolicyRetry:
	default:
		return nil, fmt.Errorf("%w: unknown failure policy %q", ErrInvalidSchedule, cfg.OnPublishFailure)
	}

	return &Loop{
		session:      session,
		publications: publications,
		period:       cfg.PublishPeriod,
		poll:         cfg.PollInterval,
		policy:       policy,
		elapsed:      make([]time.Duration, len(publications)),
		clock:        RealClock{},
		logger:       noopLogger{},
		observer:     noopObserver{},
	}, nil
}

// SetClock replaces the wall clock, mainly for tests.
func (l *Loop) SetClock(clock Clock) {
	if clock != nil {
		l.clock = clock
	}
}

// SetLogger sets the logger.
func (l *Loop) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetObserver sets the receiver of publish and poll outcomes.
func (l *Loop) SetObserver(observer Observer) {
	if observer != nil {
		l.observer = observer
	}
}

// Stats returns the activity counters.
func (l *Loop) Stats() Stats {
	return l.stats
}

// Run drives the loop until ctx is cancelled, then disconnects the
// session once and returns ctx.Err(). Publish and poll failures are
// logged and never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	defer l.session.Disconnect()

	if len(l.publications) == 0 {
		l.logger.Info("scheduler started in subscribe-only mode")
		return l.runSubscribeOnly(ctx)
	}

	l.logger.Info("scheduler started",
		"publications", len(l.publications),
		"publish_period", l.period,
		"poll_interval", l.poll,
		"policy", string(l.policy),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.step()
	}
}

// step runs one iteration.
func (l *Loop) step() {
	l.stats.Iterations++
	for i := range l.elapsed {
		l.elapsed[i] += l.poll
	}

	l.publishDue()

	// Poll every iteration, whether or not a publish ran.
	delivered, err := l.session.CheckMessage()
	switch {
	case err != nil:
		l.stats.PollFailures++
		l.logger.Warn("message poll failed", "error", err)
		l.observer.PollFailed(err)
	case delivered:
		l.stats.Delivered++
	}

	l.clock.Sleep(l.poll)
}

// publishDue publishes, in configured order, every feed whose timer has
// reached the period. A feed's timer restarts on success, and on failure
// unless the policy is retry.
func (l *Loop) publishDue() {
	for i, p := range l.publications {
		if l.elapsed[i] < l.period {
			continue
		}
		err := l.publish(p)
		if err != nil {
			l.stats.PublishFailures++
			l.logger.Warn("publish failed", "feed", p.Feed, "error", err)
			l.observer.PublishFailed(p.Feed, err)
		}
		if err == nil || l.policy == PolicySkip {
			l.elapsed[i] = 0
		}
	}
}

func (l *Loop) publish(p Publication) error {
	value, err := p.Sensor.Read()
	if err != nil {
		return fmt.Errorf("reading sensor: %w", err)
	}

	payload := control.FormatValue(value)
	if err := l.session.Publish(p.Topic, []byte(payload), 0); err != nil {
		return err
	}

	l.stats.Published++
	l.logger.Debug("published", "feed", p.Feed, "value", payload)
	l.observer.Published(p.Feed, value)
	return nil
}

// runSubscribeOnly blocks in WaitMessage. After a failure it sleeps one
// poll interval before waiting again.
func (l *Loop) runSubscribeOnly(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.stats.Iterations++

		if err := l.session.WaitMessage(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			l.stats.PollFailures++
			l.logger.Warn("waiting for message failed", "error", err)
			l.observer.PollFailed(err)
			l.clock.Sleep(l.poll)
			continue
		}
		l.stats.Delivered++
	}
}
