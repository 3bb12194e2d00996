package contract

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBuilderChaining(t *testing.T) {
	req, err := NewRequest().
		Post().
		Path(pattern.StringLiteral("/orders")).
		QueryParam("page", pattern.MustStringRegex(`^\d+$`, "1")).
		Header("X-Trace", pattern.StringLiteral("abc")).
		JSONBody(pattern.Object(map[string]pattern.JSONPattern{"qty": pattern.Like(pattern.Number(1))})).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/orders", req.Path.Example())
	assert.Equal(t, "page=1", req.QueryString())
	ct, ok := HeaderValue(req.Headers, "content-type")
	require.True(t, ok)
	assert.Equal(t, "application/json", ct)
	assert.JSONEq(t, `{"qty":1}`, string(req.Body.Content))
	require.Contains(t, req.Body.Rules, "$.qty")
	assert.Equal(t, pattern.MatchType, req.Body.Rules["$.qty"][0].Match)
}

func TestRequestBuilderDefaults(t *testing.T) {
	req, err := NewRequest().Build()
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/", req.Path.Example())
	assert.False(t, req.Body.Present())
}

func TestBodyKeepsExistingContentType(t *testing.T) {
	b, err := NewRequest().ContentType("application/vnd.orders+json")
	require.NoError(t, err)

	req, err := b.JSONBody(pattern.Object(map[string]pattern.JSONPattern{"a": pattern.Bool(true)})).Build()
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.orders+json", req.Body.ContentType)
}

func TestTextBodyDefaultsToPlainText(t *testing.T) {
	req, err := NewRequest().Body("hello").Build()
	require.NoError(t, err)

	assert.Equal(t, textPlain, req.Body.ContentType)
	assert.Equal(t, "hello", string(req.Body.Content))
}

func TestInvalidContentTypeLeavesBuilderUnchanged(t *testing.T) {
	b, err := NewRequest().Body2("<p/>", "text/html")
	require.NoError(t, err)

	_, err = b.ContentType("not a/content type;;")
	require.ErrorIs(t, err, ErrInvalidArgument)

	req, err := b.Build()
	require.NoError(t, err)
	ct, _ := HeaderValue(req.Headers, contentTypeHeader)
	assert.Equal(t, "text/html", ct)
	assert.Equal(t, "text/html", req.Body.ContentType)
}

func TestChainedFailureIsReportedByNextBuild(t *testing.T) {
	b := NewResponse().Status(42).OK()

	require.ErrorIs(t, b.Err(), ErrInvalidArgument)
	_, err := b.Build()
	require.ErrorIs(t, err, ErrInvalidArgument)

	resp, err := b.Status(201).Build()
	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
	assert.NoError(t, b.Err())
}

func TestInvalidBodyContentTypeIsReturned(t *testing.T) {
	for _, tt := range []struct {
		name string
		set  func(*RequestBuilder, string) (*RequestBuilder, error)
	}{
		{name: "Body2", set: func(b *RequestBuilder, ct string) (*RequestBuilder, error) { return b.Body2("x", ct) }},
		{name: "BodyMatching2", set: func(b *RequestBuilder, ct string) (*RequestBuilder, error) {
			return b.BodyMatching2(pattern.StringLiteral("x"), ct)
		}},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			b := NewRequest()

			_, err := tt.set(b, "not a content type;;")
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.NoError(t, b.Err())

			_, err = tt.set(b, "text/plain")
			require.NoError(t, err)

			req, err := b.Build()
			require.NoError(t, err)
			assert.Equal(t, textPlain, req.Body.ContentType)
			assert.Equal(t, "x", string(req.Body.Content))
		})
	}
}

func TestResponseBodyContentTypeIsReturned(t *testing.T) {
	b := NewResponse()

	_, err := b.Body2("x", ";;")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = b.BodyMatching2(pattern.StringLiteral("x"), "text/plain")
	require.NoError(t, err)

	resp, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, textPlain, resp.Body.ContentType)
}

func TestLockContention(t *testing.T) {
	b := NewRequest()
	b.mu.Lock()

	b.Post()
	_, ctErr := b.ContentType("text/plain")
	_, buildErr := b.Build()
	b.mu.Unlock()

	assert.ErrorIs(t, ctErr, ErrLockContention)
	assert.ErrorIs(t, buildErr, ErrLockContention)
	assert.ErrorIs(t, b.Err(), ErrLockContention)

	_, err := b.Build()
	assert.ErrorIs(t, err, ErrLockContention)

	req, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
}

func TestProviderStateHeaderGenerators(t *testing.T) {
	resp, err := NewResponse().
		HeaderFromProviderState("Location", "/orders/${id}", pattern.StringLiteral("/orders/1")).
		Build()
	require.NoError(t, err)

	v, ok := HeaderValue(resp.Headers, "location")
	require.True(t, ok)
	assert.Equal(t, "/orders/1", v)
	assert.Equal(t, []Generator{{Category: "header", Key: "Location", Expression: "/orders/${id}"}}, resp.Generators)
}

func TestPathFromProviderStateReplacesGenerator(t *testing.T) {
	req, err := NewRequest().
		PathFromProviderState("/a/${id}", pattern.StringLiteral("/a/1")).
		PathFromProviderState("/b/${id}", pattern.StringLiteral("/b/1")).
		Build()
	require.NoError(t, err)

	require.Len(t, req.Generators, 1)
	assert.Equal(t, "/b/${id}", req.Generators[0].Expression)

	req, err = NewRequest().
		PathFromProviderState("/a/${id}", pattern.StringLiteral("/a/1")).
		Path(pattern.StringLiteral("/plain")).
		Build()
	require.NoError(t, err)
	assert.Empty(t, req.Generators)
}

func TestBuildReturnsIndependentSnapshots(t *testing.T) {
	b := NewRequest().Header("A", pattern.StringLiteral("1"))

	first, err := b.Build()
	require.NoError(t, err)
	b.Header("A", pattern.StringLiteral("2"))
	second, err := b.Build()
	require.NoError(t, err)

	assert.Len(t, first.Headers["A"], 1)
	assert.Len(t, second.Headers["A"], 2)
}

func TestRequestContentsThroughResolver(t *testing.T) {
	b, err := NewRequest().WithResolver(plugin.NewRegistry(plugin.BuiltinLoader{})).Contents(context.Background(), "application/json", map[string]any{
		"id": "matching(type, 7)",
	})
	require.NoError(t, err)

	req, err := b.Build()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7}`, string(req.Body.Content))
	assert.Equal(t, "core/json", req.Body.Plugin)
	assert.Contains(t, req.Body.Rules, "$.id")
	ct, _ := HeaderValue(req.Headers, contentTypeHeader)
	assert.Equal(t, "application/json", ct)
}

func TestContentsFailureLeavesBuilderUnchanged(t *testing.T) {
	b := NewResponse().Body("before")

	_, err := b.Contents(context.Background(), "application/x-unknown", map[string]any{"a": 1})
	require.ErrorIs(t, err, plugin.ErrUnknownContentType)

	resp, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "before", string(resp.Body.Content))
}

func TestInteractionBuilder(t *testing.T) {
	ib := NewInteraction("create order", "").
		Given("no orders").
		Request(NewRequest().Post().Path(pattern.StringLiteral("/orders"))).
		Response(NewResponse().Created())
	ib, err := ib.GivenWithParams("user exists", `{"id": 1}`)
	require.NoError(t, err)

	i, err := ib.Build()
	require.NoError(t, err)
	assert.Equal(t, "create order", i.Description())
	assert.False(t, i.IsV4())
	assert.Equal(t, "POST", i.Request().Method)
	assert.Equal(t, 201, i.Response().Status)
	assert.Equal(t, []ProviderState{{Name: "no orders"}, {Name: "user exists", Params: map[string]any{"id": float64(1)}}}, i.ProviderStates())
	assert.NotEmpty(t, i.Key())

	v4, err := ib.Pending(true).Comment("flaky upstream").Transport("https").BuildV4()
	require.NoError(t, err)
	assert.True(t, v4.IsV4())
	assert.True(t, v4.Pending())
	assert.Equal(t, "https", v4.Transport())
	assert.Equal(t, TypeSynchronousHTTP, v4.Type())
	assert.Equal(t, i.Key(), v4.Key())
}

func TestGivenWithParamsRejectsInvalidJSON(t *testing.T) {
	ib := NewInteraction("x", "")

	_, err := ib.GivenWithParams("state", "{not json")
	require.ErrorIs(t, err, ErrInvalidArgument)

	i, err := ib.Build()
	require.NoError(t, err)
	assert.Empty(t, i.ProviderStates())
}

func TestInteractionSnapshotsRequestBuilder(t *testing.T) {
	rb := NewRequest().Path(pattern.StringLiteral("/a"))
	ib := NewInteraction("x", "").Request(rb)
	rb.Path(pattern.StringLiteral("/b"))

	i, err := ib.Build()
	require.NoError(t, err)
	assert.Equal(t, "/a", i.Request().Path.Example())
}

func TestInteractionPropagatesRequestFailure(t *testing.T) {
	rb := NewRequest()
	rb.mu.Lock()
	rb.Post()
	rb.mu.Unlock()

	_, err := NewInteraction("x", "").Request(rb).Build()
	require.ErrorIs(t, err, ErrLockContention)
}

func TestExplicitKey(t *testing.T) {
	i, err := NewInteraction("x", "").WithKey("k1").Build()
	require.NoError(t, err)
	assert.Equal(t, "k1", i.Key())
}

func TestKeyDependsOnProviderStates(t *testing.T) {
	a, err := NewInteraction("x", "").Given("one").Build()
	require.NoError(t, err)
	b, err := NewInteraction("x", "").Given("two").Build()
	require.NoError(t, err)
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestMessageBuilder(t *testing.T) {
	m, err := NewMessage("order created").
		Given("an order").
		Metadata("topic", "orders").
		JSONBody(pattern.Object(map[string]pattern.JSONPattern{"id": pattern.Like(pattern.String("o-1"))})).
		Build()
	require.NoError(t, err)

	assert.Equal(t, TypeAsynchronousMessages, m.Type())
	assert.JSONEq(t, `{"id":"o-1"}`, string(m.Bytes()))
	assert.Equal(t, map[string]any{"topic": "orders"}, m.Metadata())
	assert.Contains(t, m.Contents().Rules, "$.id")
}

func TestMessageWithoutContentsHasEmptyBytes(t *testing.T) {
	m, err := NewMessage("ping").Build()
	require.NoError(t, err)

	assert.NotNil(t, m.Bytes())
	assert.Empty(t, m.Bytes())
}

func TestMessageContentsThroughPlugin(t *testing.T) {
	r := plugin.NewRegistry(plugin.BuiltinLoader{})
	_, err := r.Activate(context.Background(), "xml", "")
	require.NoError(t, err)

	b, err := NewMessage("xml message").WithResolver(r).Contents(context.Background(), "application/xml", map[string]any{
		"order": map[string]any{"@id": "1", "qty": "matching(type, '3')"},
	})
	require.NoError(t, err)

	m, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "xml", m.Contents().Plugin)
	assert.Contains(t, string(m.Bytes()), `<order id="1">`)
}

func TestRequestMarshalJSON(t *testing.T) {
	req, err := NewRequest().
		Path(pattern.MustStringRegex(`^/orders/\d+$`, "/orders/1")).
		Header("Accept", pattern.StringLiteral("application/json")).
		Header("Accept", pattern.StringLiteral("text/plain")).
		Build()
	require.NoError(t, err)

	v3, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"method": "GET",
		"path": "/orders/1",
		"headers": {"Accept": "application/json, text/plain"},
		"matchingRules": {"path": {"matchers": [{"match": "regex", "regex": "^/orders/\\d+$"}], "combine": "AND"}}
	}`, string(v3))

	v4, err := json.Marshal(HTTPRequest{Request: req})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"method": "GET",
		"path": "/orders/1",
		"headers": {"Accept": ["application/json", "text/plain"]},
		"matchingRules": {"path": {"matchers": [{"match": "regex", "regex": "^/orders/\\d+$"}], "combine": "AND"}}
	}`, string(v4))
}

func TestBinaryBodyIsBase64InV4(t *testing.T) {
	rb, err := NewResponse().Body2(string([]byte{0xff, 0x00}), "application/octet-stream")
	require.NoError(t, err)
	resp, err := rb.Build()
	require.NoError(t, err)

	data, err := json.Marshal(HTTPResponse{Response: resp})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": 200,
		"headers": {"Content-Type": ["application/octet-stream"]},
		"body": {"content": "/wA=", "contentType": "application/octet-stream", "encoded": "base64"}
	}`, string(data))
}
