// Package mqtt provides the MQTT session used to talk to the feed broker.
//
// This package manages:
//   - The client identifier (configured or generated as "client_<hex>")
//   - Connect/disconnect handshake, plain (tcp://:1883) or TLS (ssl://:8883)
//   - QoS 0 publish and subscribe bounded by a configurable I/O timeout
//   - A single registered handler fed from a bounded inbox
//   - The robust policy: reconnect once and retry once on a dropped connection
//
// # Dispatch Model
//
// Paho delivers messages on its own goroutine. The session only queues
// them; CheckMessage (non-blocking) and WaitMessage (blocking) dispatch
// one queued message synchronously on the caller's goroutine. This lets a
// single scheduling loop interleave polling with periodic publishing.
//
//	broker → paho goroutine → inbox → CheckMessage → handler
//
// # Topics
//
// Feed topics follow the Adafruit IO convention "<account>/feeds/<feed>".
// Use NewTopic to build one and ParseTopic to split an inbound topic.
//
// # Usage
//
//	session := mqtt.New(cfg.MQTT)
//	session.SetLogger(logger)
//	if err := session.Connect(); err != nil {
//	    return err
//	}
//	defer session.Disconnect()
//
//	session.SetHandler(func(topic string, payload []byte) {
//	    log.Printf("%s = %s", topic, payload)
//	})
//	_ = session.Subscribe(mqtt.FeedTopic("alice", "pwm"))
//
//	delivered, err := session.CheckMessage()
package mqtt
