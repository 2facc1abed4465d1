// feedlink publishes local sensor readings to MQTT feeds and drives a
// local output from subscribed feeds.
//
// Startup brings the network link up, connects one broker session and
// then runs a single scheduling loop until SIGINT or SIGTERM. The -events
// and -migrate-down flags run a one-shot journal command instead.
//
// For configuration, see: configs/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/feedlink/internal/actuator"
	"github.com/nerrad567/feedlink/internal/audit"
	"github.com/nerrad567/feedlink/internal/control"
	"github.com/nerrad567/feedlink/internal/infrastructure/config"
	"github.com/nerrad567/feedlink/internal/infrastructure/database"
	"github.com/nerrad567/feedlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/feedlink/internal/infrastructure/logging"
	"github.com/nerrad567/feedlink/internal/infrastructure/metrics"
	"github.com/nerrad567/feedlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/feedlink/internal/network"
	"github.com/nerrad567/feedlink/internal/scheduler"
	"github.com/nerrad567/feedlink/internal/sensor"
	"github.com/nerrad567/feedlink/internal/telemetry"
	"github.com/nerrad567/feedlink/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath  = "configs/config.yaml"
	healthCheckTimeout = 5 * time.Second
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.maintenance() {
		err = runMaintenance(ctx, opts, os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - error: nil on signal-driven shutdown, or the startup/loop failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting feedlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, cfg.Device.Name, version)
	log.Info("configuration loaded",
		"path", configPath,
		"broker", cfg.MQTT.BrokerURL(),
		"publish_feeds", len(cfg.Feeds.Publish),
		"subscribe_feeds", len(cfg.Feeds.Subscribe),
	)

	// Optional sinks. Interfaces stay nil when a sink is disabled.
	var (
		counters     telemetry.Counters
		mirror       telemetry.Mirror
		journal      audit.Repository
		prom         *metrics.Metrics
		db           *database.DB
		influxClient *influxdb.Client
	)

	if cfg.Metrics.Enabled {
		prom = metrics.New()
		counters = prom
		metricsLog := log.Component("metrics")
		go func() {
			if serveErr := prom.Serve(ctx, cfg.Metrics, metricsLog); serveErr != nil {
				metricsLog.Error("metrics server failed", "error", serveErr)
			}
		}()
	}

	if cfg.Database.Enabled {
		var dbErr error
		db, dbErr = database.Open(ctx, cfg.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		journal = audit.NewSQLiteRepository(db.DB)
		log.Info("event journal ready", "path", db.Path())
	}

	if cfg.InfluxDB.Enabled {
		var influxErr error
		influxClient, influxErr = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.Name)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		mirror = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	recorder := telemetry.NewRecorder(counters, mirror, journal)
	recorder.SetLogger(log.Component("telemetry"))
	recorder.Startup(version)

	if err := bringUpNetwork(ctx, cfg.WiFi, log); err != nil {
		return err
	}

	out, err := actuator.New(cfg.Actuator, log.Component("actuator"))
	if err != nil {
		return fmt.Errorf("opening actuator: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			log.Error("error closing actuator", "error", closeErr)
		}
	}()

	router := buildRouter(cfg, out)
	router.SetLogger(log.Component("control"))
	router.SetObserver(recorder)

	publications, err := buildPublications(cfg.Feeds)
	if err != nil {
		return err
	}

	session := mqtt.New(cfg.MQTT)
	session.SetLogger(log.Component("mqtt"))
	session.SetHandler(router.Handle)
	session.SetOnConnect(recorder.Connected)
	session.SetOnDisconnect(recorder.Disconnected)
	session.SetOnReconnect(recorder.Reconnected)
	if prom != nil {
		if regErr := prom.RegisterDropped(session.Dropped); regErr != nil {
			log.Warn("inbox drop counter not exported", "error", regErr)
		}
	}

	if err := session.Connect(); err != nil {
		recorder.ConnectFailed(err)
		return fmt.Errorf("connecting to broker: %w", err)
	}

	topics := make([]string, 0, len(cfg.Feeds.Subscribe))
	for _, sub := range cfg.Feeds.Subscribe {
		topic := mqtt.FeedTopic(cfg.Feeds.Account, sub.Feed)
		if err := session.Subscribe(topic); err != nil {
			session.Disconnect()
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		topics = append(topics, topic)
		log.Info("subscribed", "topic", topic, "action", sub.Action)
	}

	healthCtx, healthCancel := context.WithTimeout(ctx, healthCheckTimeout)
	err = healthCheck(healthCtx, db, session, topics, influxClient)
	healthCancel()
	if err != nil {
		session.Disconnect()
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all connections healthy", "subscriptions", session.SubscriptionCount())

	for i := range publications {
		publications[i].Topic = mqtt.FeedTopic(cfg.Feeds.Account, publications[i].Feed)
	}

	loop, err := scheduler.New(session, cfg.Schedule, publications)
	if err != nil {
		session.Disconnect()
		return fmt.Errorf("creating scheduler: %w", err)
	}
	loop.SetLogger(log.Component("scheduler"))
	loop.SetObserver(recorder)

	log.Info("initialisation complete, entering scheduling loop")
	runErr := loop.Run(ctx)

	stats := loop.Stats()
	recorder.Shutdown(map[string]any{
		"iterations":       stats.Iterations,
		"published":        stats.Published,
		"publish_failures": stats.PublishFailures,
		"delivered":        stats.Delivered,
		"poll_failures":    stats.PollFailures,
		"inbox_dropped":    session.Dropped(),
	})

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("scheduling loop: %w", runErr)
	}

	log.Info("feedlink stopped")
	return nil
}

// getConfigPath returns FEEDLINK_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("FEEDLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections before the loop
// starts.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Journal database to check (nil if disabled)
//   - session: Broker session to check
//   - topics: Feed topics the session must be subscribed to
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, session *mqtt.Session, topics []string, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if !session.IsConnected() {
		return fmt.Errorf("mqtt: %w", mqtt.ErrNotConnected)
	}
	for _, topic := range topics {
		if !session.HasSubscription(topic) {
			return fmt.Errorf("mqtt: not subscribed to %s", topic)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// bringUpNetwork waits for the network link. A timeout is fatal.
func bringUpNetwork(ctx context.Context, cfg config.WiFiConfig, log *logging.Logger) error {
	var link network.Link = network.NoneLink{}
	if cfg.Link == "interface" {
		link = network.NewInterfaceLink(cfg.Interface, cfg.AssociateCommand)
	}

	connector := network.NewConnector(link, cfg.PollInterval)
	connector.SetLogger(log.Component("network"))

	if err := connector.Connect(ctx, cfg.SSID, cfg.Password, cfg.MaxAttempts); err != nil {
		return fmt.Errorf("bringing up network: %w", err)
	}
	return nil
}

// buildRouter binds every subscribed feed to its action.
func buildRouter(cfg *config.Config, out control.Actuator) *control.Router {
	router := control.NewRouter()
	values := control.NewValueLogger()

	for _, sub := range cfg.Feeds.Subscribe {
		switch sub.Action {
		case "duty":
			router.Bind(sub.Feed, control.NewDutyHandler(out, cfg.Actuator.MaxDuty))
		default:
			router.Bind(sub.Feed, values)
		}
	}
	return router
}

// buildPublications opens the sensor behind every published feed.
// Topics are filled in once the account is known to be valid.
func buildPublications(feeds config.FeedsConfig) ([]scheduler.Publication, error) {
	pubs := make([]scheduler.Publication, 0, len(feeds.Publish))
	for _, p := range feeds.Publish {
		s, err := sensor.New(p.Sensor)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", p.Feed, err)
		}
		pubs = append(pubs, scheduler.Publication{Feed: p.Feed, Sensor: s})
	}
	return pubs, nil
}
