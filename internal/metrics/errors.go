package metrics

import "errors"

var (
	// ErrUnknownIdentity is returned for a reading whose identity has no registration.
	ErrUnknownIdentity = errors.New("metrics: unknown identity")

	// ErrLabelMismatch is returned when a reading's label count differs from its registration.
	ErrLabelMismatch = errors.New("metrics: label values do not match registration")

	// ErrRegisterFailed is returned when the collector cannot be registered.
	ErrRegisterFailed = errors.New("metrics: register failed")

	// ErrUnsupported is returned for an operation the collector kind cannot apply.
	ErrUnsupported = errors.New("metrics: operation not supported by collector")
)
