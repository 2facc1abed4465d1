// Package control handles inbound control messages.
//
// A Router is registered as the MQTT session's single handler. It maps
// the feed name of each message to an Action: DutyHandler drives an
// actuator from integer payloads, ValueLogger records numeric values.
// Malformed payloads are logged and dropped; they never reach the
// scheduling loop and never change the actuator.
//
// The payload codec (FormatValue, ParseValue, ParseInt) is shared with
// the publishing side so a value published as "23.5" decodes to 23.5.
package control
