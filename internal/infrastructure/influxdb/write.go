package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// valueField is the single field written for every reading.
const valueField = "value"

// WriteReading records one telemetry sample.
//
// The metric name becomes the measurement and each label becomes a tag, so
// a heater temperature reading lands as
//
//	roomA,kind=temperature,unit=celsius value=21.5
//
// Parameters:
//   - name: Metric name, used as the measurement
//   - labels: Tag set
//   - value: Sample value
//   - ts: Sample time; zero means now
func (c *Client) WriteReading(name string, labels map[string]string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(name, labels, map[string]interface{}{valueField: value}, ts))
}

// WriteCommand records a command accepted by an appliance, for audit.
func (c *Client) WriteCommand(deviceID, property, payload string, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"appliance_commands",
		map[string]string{"device_id": deviceID, "property": property},
		map[string]interface{}{"payload": payload},
		ts,
	))
}
