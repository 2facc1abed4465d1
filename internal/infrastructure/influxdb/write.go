package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementReadings = "feed_readings"
	MeasurementControl  = "control_events"
)

// WriteReading records a value published to a feed.
//
// Example:
//
//	client.WriteReading("freemem", 51200)
func (c *Client) WriteReading(feed string, value float64) {
	c.writeValue(MeasurementReadings, feed, value, time.Now())
}

// WriteControl records a control value applied from a subscribed feed.
func (c *Client) WriteControl(feed string, value float64) {
	c.writeValue(MeasurementControl, feed, value, time.Now())
}

func (c *Client) writeValue(measurement, feed string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurement,
		map[string]string{"feed": feed},
		map[string]any{"value": value},
		ts,
	)
	c.writeAPI.WritePoint(point)
}
