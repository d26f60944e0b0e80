package evg230

import "errors"

// Sentinel errors returned by this package (§7). Callers should compare
// with errors.Is; every error the package itself detects wraps one of these
// with call-site context via fmt.Errorf. Errors from the socket's Close
// (Shutdown) and from the report's io.Writer (Report) are passed back
// without a sentinel.
var (
	// ErrInvalidArgument is returned when an input is outside its
	// documented domain (name length, prescaler range, sequencer/counter
	// index, timestamp overflow).
	ErrInvalidArgument = errors.New("evg230: invalid argument")

	// ErrUnknownDevice is returned by Open when name is not registered,
	// or is itself invalid (empty, or too long).
	ErrUnknownDevice = errors.New("evg230: unknown device")

	// ErrTransportTimeout is returned when MAX_RETRIES exchanges all
	// failed to produce a correctly-sized reply.
	ErrTransportTimeout = errors.New("evg230: transport timeout")

	// ErrVerifyMismatch is returned when a write-then-read-back
	// verification disagrees with the value written.
	ErrVerifyMismatch = errors.New("evg230: verify mismatch")

	// ErrConfigFull is returned by Configure once MaxDevices devices are
	// already registered.
	ErrConfigFull = errors.New("evg230: device registry full")

	// ErrSocketError is returned when socket creation or connect fails
	// during Init.
	ErrSocketError = errors.New("evg230: socket error")
)
