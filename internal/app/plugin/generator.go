package plugin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Generator produces body bytes for the content types it handles and
// decodes such bodies back into the JSON-like form the matching rules are
// evaluated against.
type Generator interface {
	Name() string
	Version() string
	ContentTypes() []string
	// Schema is the JSON schema a contents definition must satisfy, or "".
	Schema() string
	Generate(ctx context.Context, contentType string, example any) ([]byte, error)
	Decode(contentType string, body []byte) (any, error)
}

func handles(g Generator, contentType string) bool {
	mt := MediaType(contentType)
	if mt == "" {
		return false
	}
	for _, ct := range g.ContentTypes() {
		if ct == mt {
			return true
		}
		// "+json" style suffix registrations
		if strings.HasPrefix(ct, "+") && strings.HasSuffix(mt, ct) {
			return true
		}
	}
	return false
}

type jsonGenerator struct{}

// NewJSON returns the core JSON generator. It is always active.
func NewJSON() Generator { return jsonGenerator{} }

func (jsonGenerator) Name() string    { return "core/json" }
func (jsonGenerator) Version() string { return "1.0.0" }
func (jsonGenerator) Schema() string  { return `{"type": "object"}` }

func (jsonGenerator) ContentTypes() []string {
	return []string{"application/json", "+json"}
}

func (jsonGenerator) Generate(_ context.Context, _ string, example any) ([]byte, error) {
	return json.Marshal(example)
}

func (jsonGenerator) Decode(_ string, body []byte) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, errors.Wrap(err, "decode json body")
	}
	return v, nil
}

type yamlGenerator struct{}

// NewYAML returns the YAML plugin generator.
func NewYAML() Generator { return yamlGenerator{} }

func (yamlGenerator) Name() string    { return "yaml" }
func (yamlGenerator) Version() string { return "0.2.1" }
func (yamlGenerator) Schema() string  { return `{"type": "object"}` }

func (yamlGenerator) ContentTypes() []string {
	return []string{"application/yaml", "application/x-yaml", "text/yaml"}
}

func (yamlGenerator) Generate(_ context.Context, _ string, example any) ([]byte, error) {
	return yaml.Marshal(example)
}

func (yamlGenerator) Decode(_ string, body []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(body, &v); err != nil {
		return nil, errors.Wrap(err, "decode yaml body")
	}
	return pattern.Normalize(v), nil
}
