package metrics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/feedlink/internal/infrastructure/config"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

const (
	defaultListen            = ":9100"
	defaultPath              = "/metrics"
	defaultShutdownTimeout   = 5 * time.Second
	defaultReadHeaderTimeout = 3 * time.Second
)

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics holds the feedlink collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	publishTotal *prometheus.CounterVec
	controlTotal *prometheus.CounterVec
	pollFailures prometheus.Counter
	reconnects   *prometheus.CounterVec
	connected    prometheus.Gauge
}

// New creates a registry with the feedlink collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		publishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedlink_publish_total",
				Help: "Total number of feed publications by feed and result",
			},
			[]string{"feed", "result"},
		),
		controlTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedlink_control_total",
				Help: "Total number of control messages by feed and result",
			},
			[]string{"feed", "result"},
		),
		pollFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "feedlink_poll_failures_total",
			Help: "Total number of failed inbound message polls",
		}),
		reconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedlink_reconnects_total",
				Help: "Total number of session reconnect attempts by result",
			},
			[]string{"result"},
		),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feedlink_session_connected",
			Help: "1 while the broker session is connected",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObservePublish counts one publication attempt on feed.
func (m *Metrics) ObservePublish(feed string, err error) {
	m.publishTotal.WithLabelValues(feed, result(err)).Inc()
}

// ObserveControl counts one inbound control message on feed.
func (m *Metrics) ObserveControl(feed string, err error) {
	m.controlTotal.WithLabelValues(feed, result(err)).Inc()
}

// ObservePollFailure counts one failed message poll.
func (m *Metrics) ObservePollFailure() {
	m.pollFailures.Inc()
}

// ObserveReconnect counts one reconnect attempt.
func (m *Metrics) ObserveReconnect(err error) {
	m.reconnects.WithLabelValues(result(err)).Inc()
}

// SetConnected sets the session gauge.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// RegisterDropped exposes a monotonic drop count, such as the session
// inbox overflow counter, as feedlink_inbox_dropped_total.
func (m *Metrics) RegisterDropped(fn func() uint64) error {
	err := m.registry.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "feedlink_inbox_dropped_total",
			Help: "Total number of inbound messages dropped because the inbox was full",
		},
		func() float64 { return float64(fn()) },
	))
	if err != nil {
		return fmt.Errorf("registering dropped counter: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve listens on cfg.Listen and serves the registry at cfg.Path until
// ctx is cancelled, then shuts the server down gracefully.
//
// Returns:
//   - error: listen failure, or nil after a clean shutdown
func (m *Metrics) Serve(ctx context.Context, cfg config.MetricsConfig, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}
	addr := cmp.Or(cfg.Listen, defaultListen)
	path := cmp.Or(cfg.Path, defaultPath)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	return m.serve(ctx, lis, path, logger)
}

func (m *Metrics) serve(ctx context.Context, lis net.Listener, path string, logger Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("metrics server started", "addr", lis.Addr().String(), "path", path)
		serveErr <- server.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	<-serveErr
	logger.Info("metrics server stopped")
	return nil
}
