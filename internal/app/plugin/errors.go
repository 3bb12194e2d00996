package plugin

import "github.com/pkg/errors"

var (
	// ErrUnknownContentType is returned when no active generator handles a
	// content type.
	ErrUnknownContentType = errors.New("unknown content type")
	// ErrInvalidDefinition is returned when a contents definition fails
	// schema validation or holds a malformed matcher directive.
	ErrInvalidDefinition = errors.New("invalid definition")
	// ErrPluginFailure is returned when a generator errors or a plugin cannot
	// be activated.
	ErrPluginFailure = errors.New("plugin failure")

	errNotFound = errors.New("plugin not found")
)
