package contract

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
)

// Body is the single body of a request, response or message. Content holds
// the generated example bytes and Rules the matching rules for the decoded
// form of those bytes. A nil Content means no body.
type Body struct {
	ContentType string
	Content     []byte
	Rules       pattern.Rules
	Metadata    map[string]any
	Plugin      string
}

// Present reports whether a body was set, possibly empty.
func (b Body) Present() bool { return b.Content != nil }

func (b Body) clone() Body {
	out := Body{
		ContentType: b.ContentType,
		Rules:       b.Rules.Clone(),
		Metadata:    cloneMap(b.Metadata),
		Plugin:      b.Plugin,
	}
	if b.Content != nil {
		out.Content = append([]byte{}, b.Content...)
	}
	return out
}

func jsonBody(p pattern.JSONPattern, contentType string) (Body, error) {
	rule := pattern.ToMatchRule(p)
	data, err := json.Marshal(rule.Example)
	if err != nil {
		return Body{}, err
	}
	return Body{ContentType: contentType, Content: data, Rules: rule.Rules}, nil
}

func stringBody(p pattern.StringPattern, contentType string) Body {
	rule := pattern.ToStringMatchRule(p)
	return Body{ContentType: contentType, Content: []byte(p.Example()), Rules: rule.Rules}
}

func contentBody(c *plugin.Content) Body {
	return Body{
		ContentType: c.ContentType,
		Content:     append([]byte{}, c.Body...),
		Rules:       c.Rules.Clone(),
		Metadata:    cloneMap(c.Metadata),
		Plugin:      c.Plugin,
	}
}

// v3 renders the body as it appears in a v3 pact: JSON inline, anything
// else as a string.
func (b Body) v3() any {
	if !b.Present() {
		return nil
	}
	if plugin.IsJSON(b.ContentType) && json.Valid(b.Content) {
		return json.RawMessage(b.Content)
	}
	return string(b.Content)
}

type v4Body struct {
	Content     any    `json:"content"`
	ContentType string `json:"contentType,omitempty"`
	Encoded     any    `json:"encoded"`
}

// v4 renders the body in the v4 form, base64 encoding binary content.
func (b Body) v4() *v4Body {
	if !b.Present() {
		return nil
	}
	switch {
	case plugin.IsJSON(b.ContentType) && json.Valid(b.Content):
		return &v4Body{Content: json.RawMessage(b.Content), ContentType: b.ContentType, Encoded: false}
	case utf8.Valid(b.Content):
		return &v4Body{Content: string(b.Content), ContentType: b.ContentType, Encoded: false}
	default:
		return &v4Body{Content: base64.StdEncoding.EncodeToString(b.Content), ContentType: b.ContentType, Encoded: "base64"}
	}
}
