// Package logging provides structured logging for feedlink.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same default fields (service, version, device).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, cfg.Device.Name, version)
//	logger.Info("published", "feed", "freemem", "value", "24576")
//	logger.Component("mqtt").Warn("connection lost", "error", err)
//
// # Security
//
// Never log WiFi passwords or broker keys. Log the username or feed
// name instead.
package logging
