// Package network brings up the device's network link before the MQTT
// session starts.
//
// A Link starts association and reports whether the link is usable. The
// Connector polls that status at a fixed interval and gives up after a
// fixed number of polls, so a device without network fails startup
// instead of entering the scheduling loop.
//
// There is no reconnection after startup. A link that drops later shows
// up as publish and poll failures in the MQTT session.
package network
