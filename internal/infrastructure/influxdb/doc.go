// Package influxdb provides InfluxDB connectivity for homehub.
//
// It wraps the official influxdb-client-go v2 library. The recorder
// subscribes to the event bus and writes every reading through this client,
// so the live Prometheus gauges also have a durable history.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("roomA", map[string]string{"kind": "temperature", "unit": "celsius"}, 21.5, time.Time{})
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Batch
// failures arrive on the SetOnError callback. Connection and health check
// errors are returned directly.
package influxdb
