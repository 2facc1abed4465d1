// Package telemetry fans scheduler, control and session events out to
// the optional sinks: Prometheus counters, the InfluxDB mirror and the
// session event journal.
//
// A Recorder with no sinks attached is valid and does nothing, so the
// scheduling loop can always be given one.
package telemetry
