package contract

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/pkg/errors"
)

// ResponseBuilder accumulates the response the mock server replays.
type ResponseBuilder struct {
	guard
	resp     Response
	resolver plugin.Resolver
}

// NewResponse returns a builder for an empty 200 response.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{resp: defaultResponse(), resolver: plugin.Default}
}

func (b *ResponseBuilder) httpPart() part {
	return part{headers: &b.resp.Headers, body: &b.resp.Body, generators: &b.resp.Generators, resolver: b.resolver}
}

// WithResolver sets the resolver used by Contents.
func (b *ResponseBuilder) WithResolver(r plugin.Resolver) *ResponseBuilder {
	b.chain("WithResolver", func() error {
		b.resolver = r
		return nil
	})
	return b
}

// Status sets the status code.
func (b *ResponseBuilder) Status(status int) *ResponseBuilder {
	b.chain("Status", func() error {
		if status < 100 || status > 599 {
			return errors.Wrapf(ErrInvalidArgument, "status %d", status)
		}
		b.resp.Status = status
		return nil
	})
	return b
}

func (b *ResponseBuilder) OK() *ResponseBuilder        { return b.Status(http.StatusOK) }
func (b *ResponseBuilder) Created() *ResponseBuilder   { return b.Status(http.StatusCreated) }
func (b *ResponseBuilder) NoContent() *ResponseBuilder { return b.Status(http.StatusNoContent) }
func (b *ResponseBuilder) Forbidden() *ResponseBuilder { return b.Status(http.StatusForbidden) }
func (b *ResponseBuilder) NotFound() *ResponseBuilder  { return b.Status(http.StatusNotFound) }

// Header adds a value for a header.
func (b *ResponseBuilder) Header(name string, value pattern.StringPattern) *ResponseBuilder {
	b.chain("Header", func() error {
		b.httpPart().header(name, orLiteral(value))
		return nil
	})
	return b
}

// HeaderFromProviderState adds a header whose value the provider computes
// from provider state.
func (b *ResponseBuilder) HeaderFromProviderState(name, expression string, value pattern.StringPattern) *ResponseBuilder {
	b.chain("HeaderFromProviderState", func() error {
		b.httpPart().headerFromProviderState(name, expression, orLiteral(value))
		return nil
	})
	return b
}

// ContentType sets the Content-Type header. An unparsable value fails with
// ErrInvalidArgument and leaves the builder unchanged.
func (b *ResponseBuilder) ContentType(ct string) (*ResponseBuilder, error) {
	if err := b.acquire("ContentType"); err != nil {
		return b, err
	}
	defer b.release()
	return b, b.httpPart().setContentType(ct)
}

func (b *ResponseBuilder) HTML() *ResponseBuilder {
	b.chain("HTML", func() error { return b.httpPart().setContentType("text/html") })
	return b
}

func (b *ResponseBuilder) JSONUTF8() *ResponseBuilder {
	b.chain("JSONUTF8", func() error { return b.httpPart().setContentType("application/json; charset=utf-8") })
	return b
}

func (b *ResponseBuilder) Body(body string) *ResponseBuilder {
	b.chain("Body", func() error {
		b.httpPart().text(body)
		return nil
	})
	return b
}

func (b *ResponseBuilder) Body2(body, contentType string) (*ResponseBuilder, error) {
	if err := b.acquire("Body2"); err != nil {
		return b, err
	}
	defer b.release()
	return b, b.httpPart().textWithType(body, contentType)
}

func (b *ResponseBuilder) JSONBody(body pattern.JSONPattern) *ResponseBuilder {
	b.chain("JSONBody", func() error { return b.httpPart().json(body) })
	return b
}

func (b *ResponseBuilder) BodyMatching(body pattern.StringPattern) *ResponseBuilder {
	b.chain("BodyMatching", func() error {
		b.httpPart().matching(orLiteral(body))
		return nil
	})
	return b
}

func (b *ResponseBuilder) BodyMatching2(body pattern.StringPattern, contentType string) (*ResponseBuilder, error) {
	if err := b.acquire("BodyMatching2"); err != nil {
		return b, err
	}
	defer b.release()
	return b, b.httpPart().matchingWithType(orLiteral(body), contentType)
}

// Contents resolves a contents definition through the plugin resolver and
// uses the result as the body. On failure the builder is unchanged.
func (b *ResponseBuilder) Contents(ctx context.Context, contentType string, definition map[string]any) (*ResponseBuilder, error) {
	if err := b.acquire("Contents"); err != nil {
		return b, err
	}
	defer b.release()
	return b, b.httpPart().contents(ctx, contentType, definition)
}

// Err returns the first failure of a chainable method since the last Build.
func (b *ResponseBuilder) Err() error { return b.firstErr() }

// Build returns a snapshot of the response. The builder is not reset.
func (b *ResponseBuilder) Build() (Response, error) {
	if err := b.acquire("Build"); err != nil {
		return Response{}, err
	}
	defer b.release()
	if err := b.takeErr(); err != nil {
		return Response{}, err
	}
	return b.resp.clone(), nil
}

// BuildV4 is Build for the v4 representation.
func (b *ResponseBuilder) BuildV4() (HTTPResponse, error) {
	resp, err := b.Build()
	return HTTPResponse{Response: resp}, err
}

// MarshalJSON renders the response as in a v3 pact.
func (r Response) MarshalJSON() ([]byte, error) { return json.Marshal(r.v3()) }

// HTTPResponse is the v4 representation of a response.
type HTTPResponse struct {
	Response
}

// MarshalJSON renders the response as in a v4 pact.
func (r HTTPResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.Response.v4()) }
