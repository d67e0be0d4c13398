// Package bus is the in-process publish/subscribe channel between telemetry
// producers and their consumers.
//
// Producers announce a metric shape once with a Registration and then emit
// Readings keyed by the same identity. Consumers (the metric registry, the
// notification forwarder, the InfluxDB recorder, the WebSocket hub) each hold
// a Subscription with its own bounded inbox.
//
// Delivery is best-effort: Publish never blocks, and an event that does not
// fit a subscriber's inbox is dropped for that subscriber only and logged.
// Each subscriber sees the events of one producer in publish order,
// registrations and readings interleaved as they were published.
//
// The Bus is an explicit object built once at startup and passed to every
// component. A nil *Bus reports ErrNotInitialized.
package bus
