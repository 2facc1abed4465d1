// Package audit journals session lifecycle events (connects, reconnects,
// publish and decode failures, shutdown) to the session_events table.
//
// Message payloads are not journalled; readings go to InfluxDB instead.
package audit
