package plugin

import (
	"context"
	"mime"
	"strings"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
)

// Content is a resolved body: the generated bytes, the matching rules that
// apply to the decoded form of those bytes and the generator's metadata.
type Content struct {
	ContentType string
	Body        []byte
	Rules       pattern.Rules
	Metadata    map[string]any
	Plugin      string
}

// Resolver turns a content type and a contents definition into a body.
type Resolver interface {
	Resolve(ctx context.Context, contentType string, definition map[string]any) (*Content, error)
}

// MediaType returns the lower-cased media type of a Content-Type value
// without parameters, or "" if it cannot be parsed.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// IsJSON reports whether contentType is application/json or a +json type.
func IsJSON(contentType string) bool {
	mt := MediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
