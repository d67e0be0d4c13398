// Package heater synchronises an MQTT heater/fan appliance with homehub.
//
// The appliance publishes each property on its own state topic,
//
//	appliance/heaterfan/<device_id>/state/<suffix>
//
// and accepts writes on the same topic with a "/set" suffix. This package
// holds three pieces:
//
//   - Store: the latest decoded value per property plus a bounded history
//     of raw inbound messages.
//   - The listener: a single goroutine that decodes inbound messages into
//     the Store and triggers a refresh after each update. A refresh derives
//     gauge readings for the event bus and pushes the full appliance state
//     to the webhook endpoint.
//   - The command router: Execute turns a Command into one or more ordered
//     writes, consulting the Store for topics and the cached power state.
//
// Telemetry errors (unknown topics, bad payloads) are logged and contained.
// Command errors are returned to the caller and never retried.
package heater
