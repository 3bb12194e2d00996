package contract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
)

// RequestBuilder accumulates an expected HTTP request. Chainable methods
// return the builder; their failures are reported by Err and Build.
type RequestBuilder struct {
	guard
	req      Request
	resolver plugin.Resolver
}

// NewRequest returns a builder for GET /.
func NewRequest() *RequestBuilder {
	return &RequestBuilder{req: defaultRequest(), resolver: plugin.Default}
}

func (b *RequestBuilder) httpPart() part {
	return part{headers: &b.req.Headers, body: &b.req.Body, generators: &b.req.Generators, resolver: b.resolver}
}

// WithResolver sets the resolver used by Contents.
func (b *RequestBuilder) WithResolver(r plugin.Resolver) *RequestBuilder {
	b.chain("WithResolver", func() error {
		b.resolver = r
		return nil
	})
	return b
}

// Method sets the HTTP method.
func (b *RequestBuilder) Method(method string) *RequestBuilder {
	b.chain("Method", func() error {
		b.req.Method = strings.ToUpper(method)
		return nil
	})
	return b
}

func (b *RequestBuilder) Get() *RequestBuilder    { return b.Method("GET") }
func (b *RequestBuilder) Post() *RequestBuilder   { return b.Method("POST") }
func (b *RequestBuilder) Put() *RequestBuilder    { return b.Method("PUT") }
func (b *RequestBuilder) Delete() *RequestBuilder { return b.Method("DELETE") }

// Path sets the request path.
func (b *RequestBuilder) Path(path pattern.StringPattern) *RequestBuilder {
	b.chain("Path", func() error {
		b.req.Path = orLiteral(path)
		b.req.Generators = withoutGenerator(b.req.Generators, "path", "")
		return nil
	})
	return b
}

// PathFromProviderState sets the path and lets the provider compute it from
// provider state with expression, e.g. "/orders/${id}".
func (b *RequestBuilder) PathFromProviderState(expression string, path pattern.StringPattern) *RequestBuilder {
	b.chain("PathFromProviderState", func() error {
		b.req.Path = orLiteral(path)
		b.req.Generators = append(withoutGenerator(b.req.Generators, "path", ""), Generator{Category: "path", Expression: expression})
		return nil
	})
	return b
}

// QueryParam adds a value for a query parameter.
func (b *RequestBuilder) QueryParam(name string, value pattern.StringPattern) *RequestBuilder {
	b.chain("QueryParam", func() error {
		if b.req.Query == nil {
			b.req.Query = map[string][]pattern.StringPattern{}
		}
		b.req.Query[name] = append(b.req.Query[name], orLiteral(value))
		return nil
	})
	return b
}

// Header adds a value for a header.
func (b *RequestBuilder) Header(name string, value pattern.StringPattern) *RequestBuilder {
	b.chain("Header", func() error {
		b.httpPart().header(name, orLiteral(value))
		return nil
	})
	return b
}

// HeaderFromProviderState adds a header whose value the provider computes
// from provider state.
func (b *RequestBuilder) HeaderFromProviderState(name, expression string, value pattern.StringPattern) *RequestBuilder {
	b.chain("HeaderFromProviderState", func() error {
		b.httpPart().headerFromProviderState(name, expression, orLiteral(value))
		return nil
	})
	return b
}

// ContentType sets the Content-Type header. An unparsable value fails with
// ErrInvalidArgument and leaves the builder unchanged.
func (b *RequestBuilder) ContentType(ct string) (*RequestBuilder, error) {
	if err := b.acquire("ContentType"); err != nil {
		return b, err
	}
	defer b.release()
	return b, b.httpPart().setContentType(ct)
}

// HTML sets the Content-Type to text/html.
func (b *RequestBuilder) HTML() *RequestBuilder {
	b.chain("HTML", func() error { return b.httpPart().setContentType("text/html") })
	return b
}

// JSONUTF8 sets the Content-Type to JSON with a UTF-8 charset.
func (b *RequestBuilder) JSONUTF8() *RequestBuilder {
	b.chain("JSONUTF8", func() error { return b.httpPart().setContentType("application/json; charset=utf-8") })
	return b
}

// Body sets a literal body, typed by the Content-Type header or text/plain.
func (b *RequestBuilder) Body(body string) *RequestBuilder {
	b.chain("Body", func() error {
		b.httpPart().text(body)
		return nil
	})
	return b
}

// Body2 sets a literal body and its content type.
func (b *RequestBuilder) Body2(body, contentType string) (*RequestBuilder, error) {
	if err := b.acquire("Body2"); err != nil {
		return b, err
	}
	defer b.release()
	return b, b.httpPart().textWithType(body, contentType)
}

// JSONBody sets a JSON body from a pattern, typed application/json unless a
// Content-Type header is already set.
func (b *RequestBuilder) JSONBody(body pattern.JSONPattern) *RequestBuilder {
	b.chain("JSONBody", func() error { return b.httpPart().json(body) })
	return b
}

// BodyMatching sets a plain-text body matched by a string pattern.
func (b *RequestBuilder) BodyMatching(body pattern.StringPattern) *RequestBuilder {
	b.chain("BodyMatching", func() error {
		b.httpPart().matching(orLiteral(body))
		return nil
	})
	return b
}

// BodyMatching2 is BodyMatching with an explicit content type.
func (b *RequestBuilder) BodyMatching2(body pattern.StringPattern, contentType string) (*RequestBuilder, error) {
	if err := b.acquire("BodyMatching2"); err != nil {
		return b, err
	}
	defer b.release()
	return b, b.httpPart().matchingWithType(orLiteral(body), contentType)
}

// Contents resolves a contents definition through the plugin resolver and
// uses the result as the body. On failure the builder is unchanged.
func (b *RequestBuilder) Contents(ctx context.Context, contentType string, definition map[string]any) (*RequestBuilder, error) {
	if err := b.acquire("Contents"); err != nil {
		return b, err
	}
	defer b.release()
	return b, b.httpPart().contents(ctx, contentType, definition)
}

// Err returns the first failure of a chainable method since the last Build.
func (b *RequestBuilder) Err() error { return b.firstErr() }

// Build returns a snapshot of the request. The builder is not reset.
func (b *RequestBuilder) Build() (Request, error) {
	if err := b.acquire("Build"); err != nil {
		return Request{}, err
	}
	defer b.release()
	if err := b.takeErr(); err != nil {
		return Request{}, err
	}
	return b.req.clone(), nil
}

// BuildV4 is Build for the v4 representation.
func (b *RequestBuilder) BuildV4() (HTTPRequest, error) {
	req, err := b.Build()
	return HTTPRequest{Request: req}, err
}

// MarshalJSON renders the request as in a v3 pact.
func (r Request) MarshalJSON() ([]byte, error) { return json.Marshal(r.v3()) }

// HTTPRequest is the v4 representation of a request.
type HTTPRequest struct {
	Request
}

// MarshalJSON renders the request as in a v4 pact.
func (r HTTPRequest) MarshalJSON() ([]byte, error) { return json.Marshal(r.Request.v4()) }

func orLiteral(p pattern.StringPattern) pattern.StringPattern {
	if p == nil {
		return pattern.StringLiteral("")
	}
	return p
}
