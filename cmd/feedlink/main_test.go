package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/feedlink/internal/audit"
	"github.com/nerrad567/feedlink/internal/infrastructure/config"
	"github.com/nerrad567/feedlink/internal/infrastructure/database"
	"github.com/nerrad567/feedlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/feedlink/internal/network"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("FEEDLINK_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want a config error", err)
	}
}

// TestRun_NetworkTimeout verifies startup aborts when the link never comes up.
func TestRun_NetworkTimeout(t *testing.T) {
	configPath := writeConfig(t, `
wifi:
  link: interface
  interface: feedlink-test-missing0
  max_attempts: 2
  poll_interval: 10ms
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
feeds:
  account: alice
  subscribe:
    - feed: pwm
      action: log
logging:
  output: stderr
`)
	t.Setenv("FEEDLINK_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if !errors.Is(err, network.ErrTimedOut) {
		t.Errorf("run() error = %v, want ErrTimedOut", err)
	}
}

// TestRun_BrokerUnreachableIsJournalled verifies a failed broker connect
// is fatal and lands in the event journal.
func TestRun_BrokerUnreachableIsJournalled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "feedlink.db")
	configPath := writeConfig(t, `
device:
  name: test-device
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
  connect_timeout: 2s
feeds:
  account: alice
  publish:
    - feed: freemem
      sensor:
        type: heap
database:
  enabled: true
  path: "`+dbPath+`"
logging:
  output: stderr
`)
	t.Setenv("FEEDLINK_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "connecting to broker") {
		t.Fatalf("run() error = %v, want broker connect failure", err)
	}

	db, err := database.Open(context.Background(), config.DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	res, err := audit.NewSQLiteRepository(db.DB).List(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("journal has %d events, want 2", res.Total)
	}
	if res.Events[0].Action != audit.ActionConnectFailed || res.Events[1].Action != audit.ActionStartup {
		t.Errorf("journal = [%s %s], want [connect_failed startup]", res.Events[0].Action, res.Events[1].Action)
	}
}

// TestHealthCheck_SessionDown verifies the loop is not entered without a
// live broker session.
func TestHealthCheck_SessionDown(t *testing.T) {
	session := mqtt.New(config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883, ClientID: "feedlink-test"},
	})

	err := healthCheck(context.Background(), nil, session, []string{"alice/feeds/pwm"}, nil)
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("healthCheck() error = %v, want ErrNotConnected", err)
	}
}

// TestHealthCheck_DatabaseFirst verifies an unusable journal is reported
// before the session is looked at.
func TestHealthCheck_DatabaseFirst(t *testing.T) {
	db, err := database.Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "feedlink.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	db.Close() //nolint:errcheck // Closed on purpose

	err = healthCheck(context.Background(), db, mqtt.New(config.MQTTConfig{}), nil, nil)
	if err == nil || !strings.HasPrefix(err.Error(), "database:") {
		t.Errorf("healthCheck() error = %v, want a database failure", err)
	}
}

// TestGetConfigPath verifies environment override of the config path.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("FEEDLINK_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("FEEDLINK_CONFIG", "/etc/feedlink/config.yaml")
	if got := getConfigPath(); got != "/etc/feedlink/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}

type recordingActuator struct{ duty int }

func (r *recordingActuator) SetDuty(d int) error { r.duty = d; return nil }

// TestBuildRouter verifies duty feeds reach the actuator and others do not.
func TestBuildRouter(t *testing.T) {
	cfg := &config.Config{
		Feeds: config.FeedsConfig{
			Account: "alice",
			Subscribe: []config.SubscriptionConfig{
				{Feed: "pwm", Action: "duty"},
				{Feed: "setpoint", Action: "log"},
			},
		},
		Actuator: config.ActuatorConfig{MaxDuty: 1023},
	}
	out := &recordingActuator{}
	router := buildRouter(cfg, out)

	router.Handle("alice/feeds/pwm", []byte("2000"))
	if out.duty != 1023 {
		t.Errorf("duty = %d, want clamped 1023", out.duty)
	}

	router.Handle("alice/feeds/setpoint", []byte("5"))
	if out.duty != 1023 {
		t.Errorf("log feed changed the duty to %d", out.duty)
	}
}

// TestBuildPublications verifies sensors are resolved per feed.
func TestBuildPublications(t *testing.T) {
	pubs, err := buildPublications(config.FeedsConfig{
		Publish: []config.PublicationConfig{
			{Feed: "freemem", Sensor: config.SensorConfig{Type: "heap"}},
		},
	})
	if err != nil {
		t.Fatalf("buildPublications() error = %v", err)
	}
	if len(pubs) != 1 || pubs[0].Feed != "freemem" || pubs[0].Sensor == nil {
		t.Errorf("publications = %+v", pubs)
	}

	_, err = buildPublications(config.FeedsConfig{
		Publish: []config.PublicationConfig{
			{Feed: "temp", Sensor: config.SensorConfig{Type: "dht22"}},
		},
	})
	if err == nil {
		t.Error("buildPublications() should reject an unknown sensor")
	}
}
