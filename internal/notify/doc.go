// Package notify forwards telemetry to an outbound webhook endpoint.
//
// The Forwarder is a bus consumer. It remembers each identity's display
// name and category from its registration and, for every scalar reading,
// issues a GET built from a URL template:
//
//	http://homebridge:51828/?{}  +  accessoryId=roomA&value=21.5
//
// Readings in the "switch" category send state=true|false instead of value.
//
// The StatePusher sends an appliance's complete state as six GETs in the
// homebridge webhook format.
//
// All calls are fire-and-forget through a Dispatcher: outcomes are logged,
// never retried, and never block the caller.
package notify
