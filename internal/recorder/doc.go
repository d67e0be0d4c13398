// Package recorder persists telemetry readings to a time-series store.
//
// The recorder is a third bus subscriber next to the metric registry and
// the notification forwarder. It keeps its own identity → shape map from
// registration events and, for every scalar reading, writes one point whose
// measurement is the registered metric name and whose tags pair the
// registered label names with the reading's label values.
//
// Increment and decrement readings have no absolute value and are skipped.
package recorder
