// Package config handles loading and validating feedlink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - WiFi passwords and broker keys should be set via environment variables
//     (FEEDLINK_WIFI_PASSWORD, FEEDLINK_MQTT_KEY)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.BrokerURL())
package config
