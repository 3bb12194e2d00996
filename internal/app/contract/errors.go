package contract

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument is returned for malformed builder input such as an
	// unparsable content type or provider state parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLockContention is returned when a builder is mutated concurrently.
	// Builders support a single writer.
	ErrLockContention = errors.New("builder is in use by another goroutine")
)
