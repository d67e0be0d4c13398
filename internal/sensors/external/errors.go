package external

import "errors"

var (
	// ErrNoCommand is returned for an empty command line.
	ErrNoCommand = errors.New("external: empty command")

	// ErrRunFailed is returned when the program cannot be run or exits non-zero.
	ErrRunFailed = errors.New("external: run failed")

	// ErrBadOutput is returned when stdout is not a JSON reading array.
	ErrBadOutput = errors.New("external: invalid output")
)
