package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// defaultPollInterval matches the one-second status poll of the device scripts.
const defaultPollInterval = time.Second

var errLinkDown = errors.New("link not connected")

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Connector brings a Link up at startup.
type Connector struct {
	link     Link
	interval time.Duration
	logger   Logger

	// timer drives the wait between polls; nil uses a real timer.
	timer backoff.Timer
}

// NewConnector creates a Connector that polls link every interval.
// A non-positive interval means one second.
func NewConnector(link Link, interval time.Duration) *Connector {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Connector{
		link:     link,
		interval: interval,
		logger:   noopLogger{},
	}
}

// SetLogger sets a logger for progress messages.
func (c *Connector) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Connect starts association and waits for the link.
//
// The link status is checked at most maxAttempts times, one interval
// apart.
//
// Parameters:
//   - ctx: Cancels the wait between polls
//   - ssid, password: Passed to Link.Associate
//   - maxAttempts: Number of status polls before giving up
//
// Returns:
//   - error: nil once connected; ErrTimedOut after maxAttempts polls;
//     ErrAssociationFailed or ctx.Err() otherwise
func (c *Connector) Connect(ctx context.Context, ssid, password string, maxAttempts int) error {
	if maxAttempts < 1 {
		return ErrInvalidAttempts
	}

	if err := c.link.Associate(ctx, ssid, password); err != nil {
		return fmt.Errorf("%w: %w", ErrAssociationFailed, err)
	}

	attempts := 0
	poll := func() error {
		attempts++
		if c.link.IsConnected() {
			return nil
		}
		return errLinkDown
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.interval), uint64(maxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(poll, policy, func(_ error, next time.Duration) {
		c.logger.Debug("waiting for network", "attempt", attempts, "max_attempts", maxAttempts, "retry_in", next)
	}, c.timer)
	if err == nil {
		c.logger.Info("network connected", "attempts", attempts)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w after %d attempts", ErrTimedOut, attempts)
}
