package contract

import (
	"context"
	"encoding/json"
	"mime"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/pkg/errors"
)

const (
	contentTypeHeader = "Content-Type"
	textPlain         = "text/plain"
	applicationJSON   = "application/json"
)

// part is the state shared by request and response builders: headers, the
// body and the provider state generators.
type part struct {
	headers    *map[string][]pattern.StringPattern
	body       *Body
	generators *[]Generator
	resolver   plugin.Resolver
}

func validContentType(ct string) error {
	if _, _, err := mime.ParseMediaType(ct); err != nil {
		return errors.Wrapf(ErrInvalidArgument, "content type %q: %s", ct, err)
	}
	return nil
}

func (p part) contentType() string {
	ct, _ := HeaderValue(*p.headers, contentTypeHeader)
	return ct
}

func (p part) setContentType(ct string) error {
	if err := validContentType(ct); err != nil {
		return err
	}
	*p.headers = setHeader(*p.headers, contentTypeHeader, pattern.StringLiteral(ct))
	if p.body.Present() {
		p.body.ContentType = ct
	}
	return nil
}

func (p part) header(name string, value pattern.StringPattern) {
	*p.headers = addHeader(*p.headers, name, value)
}

func (p part) headerFromProviderState(name, expression string, value pattern.StringPattern) {
	p.header(name, value)
	*p.generators = append(withoutGenerator(*p.generators, "header", name), Generator{Category: "header", Key: name, Expression: expression})
}

// setBody installs b, and a Content-Type header when none is present.
func (p part) setBody(b Body) {
	if ct := p.contentType(); ct == "" && b.ContentType != "" {
		*p.headers = setHeader(*p.headers, contentTypeHeader, pattern.StringLiteral(b.ContentType))
	}
	*p.body = b
}

func (p part) fallbackContentType(fallback string) string {
	if ct := p.contentType(); ct != "" {
		return ct
	}
	return fallback
}

func (p part) text(s string) {
	p.setBody(Body{ContentType: p.fallbackContentType(textPlain), Content: []byte(s)})
}

func (p part) textWithType(s, ct string) error {
	if err := validContentType(ct); err != nil {
		return err
	}
	*p.headers = setHeader(*p.headers, contentTypeHeader, pattern.StringLiteral(ct))
	p.setBody(Body{ContentType: ct, Content: []byte(s)})
	return nil
}

func (p part) json(v pattern.JSONPattern) error {
	b, err := jsonBody(v, p.fallbackContentType(applicationJSON))
	if err != nil {
		return errors.Wrapf(ErrInvalidArgument, "json body: %s", err)
	}
	p.setBody(b)
	return nil
}

func (p part) matching(v pattern.StringPattern) {
	p.setBody(stringBody(v, p.fallbackContentType(textPlain)))
}

func (p part) matchingWithType(v pattern.StringPattern, ct string) error {
	if err := validContentType(ct); err != nil {
		return err
	}
	*p.headers = setHeader(*p.headers, contentTypeHeader, pattern.StringLiteral(ct))
	p.setBody(stringBody(v, ct))
	return nil
}

// contents resolves a definition through the resolver. The builder state
// is only touched once resolution succeeded.
func (p part) contents(ctx context.Context, ct string, definition map[string]any) error {
	if err := validContentType(ct); err != nil {
		return err
	}
	c, err := p.resolver.Resolve(ctx, ct, definition)
	if err != nil {
		return err
	}
	*p.headers = setHeader(*p.headers, contentTypeHeader, pattern.StringLiteral(ct))
	p.setBody(contentBody(c))
	return nil
}

func withoutGenerator(gens []Generator, category, key string) []Generator {
	out := gens[:0:0]
	for _, g := range gens {
		if g.Category != category || g.Key != key {
			out = append(out, g)
		}
	}
	return out
}

// DecodeDefinition parses a JSON contents definition.
func DecodeDefinition(definition string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(definition), &out); err != nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "contents definition: %s", err)
	}
	return out, nil
}
