// Package metrics is the bus consumer that turns registrations and readings
// into Prometheus collectors.
//
// A Registration creates a GaugeVec or CounterVec named after the
// registration, with its label names. A Reading is applied to the collector
// bound to its identity: scalars set gauges, increments apply to both kinds,
// and decrements apply to gauges only. Readings for identities that were
// never registered are logged and dropped.
//
// Snapshot renders every collector in the Prometheus text exposition format
// and is safe to call while readings are being applied.
package metrics
