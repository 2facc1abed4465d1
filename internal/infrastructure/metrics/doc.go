// Package metrics exposes feedlink counters on a Prometheus endpoint.
//
// A Metrics value owns its own registry so tests and multiple instances
// do not collide on the global default registerer.
//
// Exported series:
//   - feedlink_publish_total{feed,result}
//   - feedlink_control_total{feed,result}
//   - feedlink_poll_failures_total
//   - feedlink_reconnects_total{result}
//   - feedlink_session_connected
//   - feedlink_inbox_dropped_total
//
// plus the standard Go runtime and process collectors.
package metrics
