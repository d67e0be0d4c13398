package notify

import "errors"

var (
	// ErrUnknownIdentity is returned for a reading whose identity has no registration.
	ErrUnknownIdentity = errors.New("notify: unknown identity")

	// ErrNotScalar is returned for increments and decrements, which have no value to send.
	ErrNotScalar = errors.New("notify: reading is not a scalar")

	// ErrRequestFailed wraps transport failures and non-2xx responses.
	ErrRequestFailed = errors.New("notify: request failed")
)
