package heater

import "errors"

// Use errors.Is() to check for these errors in calling code.
var (
	// ErrStartup is returned by Start when the appliance topics cannot be
	// subscribed or the metric cannot be registered.
	ErrStartup = errors.New("heater: startup failed")

	// ErrUnknownTopic is returned for an inbound topic outside the closed suffix table.
	ErrUnknownTopic = errors.New("heater: unknown topic")

	// ErrDecode is returned when a payload does not decode to its property's type.
	ErrDecode = errors.New("heater: payload decode failed")

	// ErrInvalidCommand is returned for malformed or out-of-range commands.
	ErrInvalidCommand = errors.New("heater: invalid command")

	// ErrUnknownProperty is returned when a command targets a property the
	// appliance has not reported yet, so its topic is unknown.
	ErrUnknownProperty = errors.New("heater: property not yet reported")

	// ErrNotConnected is returned for commands while the appliance is disconnected.
	ErrNotConnected = errors.New("heater: not connected")

	// ErrTransport wraps a failed outbound write. Earlier writes of the same
	// command are not rolled back.
	ErrTransport = errors.New("heater: transport write failed")
)
