// Package influxdb mirrors feed traffic into InfluxDB.
//
// Every reading the device publishes is written to the feed_readings
// measurement and every control value it applies to control_events,
// both tagged with the feed name. This gives a local history that
// outlives the broker's own retention.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.Name)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("freemem", 51200)
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Write failures are delivered to the SetOnError callback. Connection
// and health check errors are returned directly.
package influxdb
