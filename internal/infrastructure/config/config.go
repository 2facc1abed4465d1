package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Broker ports used when mqtt.broker.port is left unset.
const (
	defaultPlainPort = 1883
	defaultTLSPort   = 8883
)

// Publish failure policies for the scheduling loop.
const (
	// FailurePolicySkip resets the publish timer even when a publish fails,
	// so the next attempt waits a full period.
	FailurePolicySkip = "skip"

	// FailurePolicyRetry keeps the timer running after a failed publish,
	// so the next loop iteration tries again.
	FailurePolicyRetry = "retry"
)

// Config is the root configuration structure for feedlink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	WiFi     WiFiConfig     `yaml:"wifi"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DeviceConfig identifies this device in logs and the event journal.
type DeviceConfig struct {
	Name string `yaml:"name"`
}

// WiFiConfig contains network association settings.
type WiFiConfig struct {
	// Link selects the link implementation: "none" (already networked,
	// e.g. wired) or "interface" (poll a named interface for an address).
	Link string `yaml:"link"`

	// Interface is the network interface to watch, e.g. "wlan0".
	Interface string `yaml:"interface"`

	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`

	// AssociateCommand is run once before polling starts. The tokens
	// {ssid}, {password} and {interface} are substituted.
	// Example: ["nmcli", "dev", "wifi", "connect", "{ssid}", "password", "{password}"]
	AssociateCommand []string `yaml:"associate_command"`

	// MaxAttempts is the number of status polls before startup gives up.
	MaxAttempts int `yaml:"max_attempts"`

	// PollInterval is the time between status polls.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// Robust enables reconnect-and-retry-once on publish/subscribe
	// failures caused by a dropped connection.
	Robust bool `yaml:"robust"`

	// KeepAlive is the MQTT keepalive interval in seconds.
	KeepAlive int `yaml:"keep_alive"`

	// ConnectTimeout bounds the MQTT handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// IOTimeout bounds every publish/subscribe acknowledgement wait.
	IOTimeout time.Duration `yaml:"io_timeout"`

	// InboxSize is the number of inbound messages buffered between polls.
	InboxSize int `yaml:"inbox_size"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
// For Adafruit IO the username is the account name and the key is the AIO key.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Key      string `yaml:"key"`
}

// FeedsConfig describes which feeds are published and subscribed.
type FeedsConfig struct {
	// Account is the topic namespace: "<account>/feeds/<feed>".
	Account   string               `yaml:"account"`
	Publish   []PublicationConfig  `yaml:"publish"`
	Subscribe []SubscriptionConfig `yaml:"subscribe"`
}

// PublicationConfig binds a feed to the sensor that produces its value.
type PublicationConfig struct {
	Feed   string       `yaml:"feed"`
	Sensor SensorConfig `yaml:"sensor"`
}

// SensorConfig selects and configures a sensor.
type SensorConfig struct {
	// Type is one of "heap", "file" or "mcp9808".
	Type string `yaml:"type"`

	// Path is the file to read for "file" and "mcp9808" sensors.
	Path string `yaml:"path"`

	// Scale multiplies the raw value of a "file" sensor. Zero means 1.
	Scale float64 `yaml:"scale"`
}

// SubscriptionConfig binds a subscribed feed to a control action.
type SubscriptionConfig struct {
	Feed string `yaml:"feed"`

	// Action is "duty" (drive the actuator) or "log" (record the value).
	Action string `yaml:"action"`
}

// ScheduleConfig contains the cooperative loop timing.
type ScheduleConfig struct {
	PublishPeriod    time.Duration `yaml:"publish_period"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	OnPublishFailure string        `yaml:"on_publish_failure"`
}

// ActuatorConfig configures the output driven by "duty" subscriptions.
type ActuatorConfig struct {
	// Type is "log" or "pwm".
	Type string `yaml:"type"`

	// Path is the sysfs PWM channel directory, e.g. /sys/class/pwm/pwmchip0/pwm0.
	Path string `yaml:"path"`

	// PeriodNS is the PWM period written to the channel on open.
	PeriodNS int `yaml:"period_ns"`

	// MaxDuty is the full-scale duty value accepted from the feed.
	MaxDuty int `yaml:"max_duty"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite event journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FEEDLINK_SECTION_KEY
// For example: FEEDLINK_WIFI_PASSWORD, FEEDLINK_MQTT_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the timings of the reference device scripts.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "feedlink",
		},
		WiFi: WiFiConfig{
			Link:         "none",
			MaxAttempts:  20,
			PollInterval: time.Second,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "io.adafruit.com",
			},
			QoS:            0,
			Robust:         true,
			KeepAlive:      60,
			ConnectTimeout: 10 * time.Second,
			IOTimeout:      5 * time.Second,
			InboxSize:      16,
		},
		Schedule: ScheduleConfig{
			PublishPeriod:    10 * time.Second,
			PollInterval:     500 * time.Millisecond,
			OnPublishFailure: FailurePolicySkip,
		},
		Actuator: ActuatorConfig{
			Type:     "log",
			PeriodNS: 1000000,
			MaxDuty:  1023,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:        "./data/feedlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen: ":9100",
			Path:   "/metrics",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Secrets belong here rather than in the YAML file.
func applyEnvOverrides(cfg *Config) {
	// WiFi
	if v := os.Getenv("FEEDLINK_WIFI_SSID"); v != "" {
		cfg.WiFi.SSID = v
	}
	if v := os.Getenv("FEEDLINK_WIFI_PASSWORD"); v != "" {
		cfg.WiFi.Password = v
	}

	// MQTT
	if v := os.Getenv("FEEDLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FEEDLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FEEDLINK_MQTT_KEY"); v != "" {
		cfg.MQTT.Auth.Key = v
	}

	// Database
	if v := os.Getenv("FEEDLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("FEEDLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// normalise fills values that depend on other settings.
func (c *Config) normalise() {
	if c.MQTT.Broker.Port == 0 {
		if c.MQTT.Broker.TLS {
			c.MQTT.Broker.Port = defaultTLSPort
		} else {
			c.MQTT.Broker.Port = defaultPlainPort
		}
	}

	// Adafruit IO uses the account name as the MQTT username.
	if c.Feeds.Account == "" {
		c.Feeds.Account = c.MQTT.Auth.Username
	}

	if c.Schedule.OnPublishFailure == "" {
		c.Schedule.OnPublishFailure = FailurePolicySkip
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// WiFi validation
	switch c.WiFi.Link {
	case "none":
	case "interface":
		if c.WiFi.Interface == "" {
			errs = append(errs, "wifi.interface is required when wifi.link is \"interface\"")
		}
		if c.WiFi.MaxAttempts < 1 {
			errs = append(errs, "wifi.max_attempts must be at least 1")
		}
		if c.WiFi.PollInterval <= 0 {
			errs = append(errs, "wifi.poll_interval must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("wifi.link %q must be \"none\" or \"interface\"", c.WiFi.Link))
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS != 0 {
		errs = append(errs, "mqtt.qos must be 0 (at-most-once)")
	}
	if c.MQTT.IOTimeout <= 0 {
		errs = append(errs, "mqtt.io_timeout must be positive")
	}

	// Feed validation
	if len(c.Feeds.Publish) == 0 && len(c.Feeds.Subscribe) == 0 {
		errs = append(errs, "feeds: at least one publish or subscribe feed is required")
	}
	if c.Feeds.Account == "" {
		errs = append(errs, "feeds.account is required (or set mqtt.auth.username)")
	}
	for i, p := range c.Feeds.Publish {
		if p.Feed == "" {
			errs = append(errs, fmt.Sprintf("feeds.publish[%d].feed is required", i))
		}
		switch p.Sensor.Type {
		case "heap":
		case "file", "mcp9808":
			if p.Sensor.Path == "" {
				errs = append(errs, fmt.Sprintf("feeds.publish[%d].sensor.path is required for %q", i, p.Sensor.Type))
			}
		default:
			errs = append(errs, fmt.Sprintf("feeds.publish[%d].sensor.type %q is not supported", i, p.Sensor.Type))
		}
	}
	for i, s := range c.Feeds.Subscribe {
		if s.Feed == "" {
			errs = append(errs, fmt.Sprintf("feeds.subscribe[%d].feed is required", i))
		}
		if s.Action != "duty" && s.Action != "log" {
			errs = append(errs, fmt.Sprintf("feeds.subscribe[%d].action %q must be \"duty\" or \"log\"", i, s.Action))
		}
	}

	// Schedule validation
	if len(c.Feeds.Publish) > 0 {
		if c.Schedule.PublishPeriod <= 0 {
			errs = append(errs, "schedule.publish_period must be positive")
		}
		if c.Schedule.PollInterval <= 0 {
			errs = append(errs, "schedule.poll_interval must be positive")
		} else if c.Schedule.PollInterval > c.Schedule.PublishPeriod {
			errs = append(errs, "schedule.poll_interval must not exceed schedule.publish_period")
		}
	}
	if c.Schedule.OnPublishFailure != FailurePolicySkip && c.Schedule.OnPublishFailure != FailurePolicyRetry {
		errs = append(errs, "schedule.on_publish_failure must be \"skip\" or \"retry\"")
	}

	// Actuator validation
	switch c.Actuator.Type {
	case "log":
	case "pwm":
		if c.Actuator.Path == "" {
			errs = append(errs, "actuator.path is required for pwm actuators")
		}
		if c.Actuator.PeriodNS <= 0 {
			errs = append(errs, "actuator.period_ns must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("actuator.type %q must be \"log\" or \"pwm\"", c.Actuator.Type))
	}
	if c.Actuator.MaxDuty <= 0 {
		errs = append(errs, "actuator.max_duty must be positive")
	}

	// Optional sinks
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerURL returns the paho broker URL (tcp:// or ssl://).
func (c MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Broker.Host, c.Broker.Port)
}
