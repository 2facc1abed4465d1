package mqtt

import (
	"crypto/tls"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/feedlink/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when mqtt.connect_timeout is unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultIOTimeout is used when mqtt.io_timeout is unset.
	defaultIOTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when mqtt.keep_alive is unset.
	defaultKeepAlive = 60 * time.Second

	// defaultInboxSize is used when mqtt.inbox_size is unset.
	defaultInboxSize = 16

	// maxQoS is the highest QoS level accepted. Only at-most-once delivery is supported.
	maxQoS = 0

	// maxPayloadSize caps outgoing payloads. Adafruit IO rejects larger values anyway.
	maxPayloadSize = 100 << 10

	// clientIDPrefix matches the identifiers generated by the device scripts.
	clientIDPrefix = "client_"

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// GenerateClientID returns a random client identifier of the form "client_<8 hex>".
func GenerateClientID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return clientIDPrefix + id[:8]
}

// buildClientOptions creates paho options for one connection attempt.
//
// Auto-reconnect is disabled: reconnection is an explicit session policy
// (see Session.Publish) so every reconnect is visible to the caller.
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Key)
	}

	// Clean session: subscriptions are restored by the session after reconnect.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(durationOr(cfg.ConnectTimeout, defaultConnectTimeout))
	opts.SetWriteTimeout(durationOr(cfg.IOTimeout, defaultIOTimeout))

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
			ServerName: cfg.Broker.Host,
		})
	}

	return opts
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
