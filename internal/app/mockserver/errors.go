package mockserver

import "errors"

var (
	// ErrServerUnavailable is returned when the worker behind a handle has
	// exited without answering, typically because the server failed to start.
	ErrServerUnavailable = errors.New("mock server unavailable")
	// ErrChannelClosed is returned for commands sent after the handle was
	// stopped.
	ErrChannelClosed = errors.New("mock server channel closed")
	// ErrVerificationFailed is returned by Verification.Err when requests did
	// not match the contract or interactions were never exercised.
	ErrVerificationFailed = errors.New("mock server verification failed")
)
