package pattern

import "github.com/pkg/errors"

var (
	// ErrInvalidPattern is returned for a bad regex or a malformed matcher.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrInvalidKey is returned when an object key is not text.
	ErrInvalidKey = errors.New("invalid key")
)
