package bus

import "errors"

var (
	// ErrNotInitialized is returned by a nil *Bus. It indicates a startup
	// ordering bug and should abort startup.
	ErrNotInitialized = errors.New("bus: not initialised")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("bus: closed")

	// ErrInvalidEvent is returned when publishing a nil event.
	ErrInvalidEvent = errors.New("bus: invalid event")
)
