package configuration

import (
	"context"
	"fmt"
	"sort"

	"github.com/form3tech-oss/pact-consumer/internal/app/contract"
	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Definition is the body of POST /mock-servers. Path, query, header and
// body values use the tagged pattern form, so a value is either a literal
// or an object carrying "$match".
type Definition struct {
	Consumer     string                  `json:"consumer" validate:"required"`
	Provider     string                  `json:"provider" validate:"required"`
	V4           bool                    `json:"v4,omitempty"`
	Plugins      []PluginDefinition      `json:"plugins,omitempty" validate:"dive"`
	Interactions []InteractionDefinition `json:"interactions" validate:"required,min=1,dive"`
}

type PluginDefinition struct {
	Name    string `json:"name" validate:"required"`
	Version string `json:"version,omitempty"`
}

type InteractionDefinition struct {
	Description    string                    `json:"description" validate:"required"`
	Type           string                    `json:"type,omitempty"`
	Key            string                    `json:"key,omitempty"`
	ProviderStates []ProviderStateDefinition `json:"providerStates,omitempty" validate:"dive"`
	Pending        bool                      `json:"pending,omitempty"`
	Comments       []string                  `json:"comments,omitempty"`
	Request        RequestDefinition         `json:"request"`
	Response       ResponseDefinition        `json:"response"`
}

type ProviderStateDefinition struct {
	Name   string         `json:"name" validate:"required"`
	Params map[string]any `json:"params,omitempty"`
}

type RequestDefinition struct {
	Method  string           `json:"method,omitempty" validate:"omitempty,alpha"`
	Path    any              `json:"path" validate:"required"`
	Query   map[string][]any `json:"query,omitempty"`
	BodyDefinition
}

type ResponseDefinition struct {
	Status int `json:"status,omitempty" validate:"omitempty,min=100,max=599"`
	BodyDefinition
}

// BodyDefinition holds the headers and at most one of Body and Contents.
// Contents is a plugin definition resolved for ContentType.
type BodyDefinition struct {
	Headers     map[string][]any `json:"headers,omitempty"`
	ContentType string           `json:"contentType,omitempty" validate:"required_with=Contents"`
	Body        any              `json:"body,omitempty"`
	Contents    map[string]any   `json:"contents,omitempty"`
}

var validate = validator.New()

// Validate checks the shape of the definition. Pattern values are checked
// when the contract is built.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid definition: %w", err)
	}
	for _, i := range d.Interactions {
		if i.Request.Body != nil && i.Request.Contents != nil {
			return fmt.Errorf("invalid definition: request of %q has both body and contents", i.Description)
		}
		if i.Response.Body != nil && i.Response.Contents != nil {
			return fmt.Errorf("invalid definition: response of %q has both body and contents", i.Description)
		}
	}
	return nil
}

// Build turns the definition into a contract, activating its plugins in
// registry.
func (d *Definition) Build(ctx context.Context, registry *plugin.Registry) (*contract.Pact, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = plugin.Default
	}

	pb := contract.New(d.Consumer, d.Provider)
	if d.V4 {
		pb = contract.NewV4(d.Consumer, d.Provider)
	}
	pb.WithRegistry(registry)

	for _, p := range d.Plugins {
		if _, err := pb.ActivatePlugin(ctx, p.Name, p.Version); err != nil {
			return nil, err
		}
	}

	for n, def := range d.Interactions {
		i, err := def.build(ctx, registry, d.V4)
		if err != nil {
			return nil, errors.Wrapf(err, "interaction %d (%s)", n, def.Description)
		}
		pb.PushInteraction(i)
	}
	return pb.Pact()
}

func (d InteractionDefinition) build(ctx context.Context, registry *plugin.Registry, v4 bool) (contract.Interaction, error) {
	ib := contract.NewInteraction(d.Description, d.Type)
	for _, s := range d.ProviderStates {
		if s.Params == nil {
			ib.Given(s.Name)
		} else {
			ib.GivenWith(s.Name, s.Params)
		}
	}
	if d.Key != "" {
		ib.WithKey(d.Key)
	}
	ib.Pending(d.Pending)
	for _, c := range d.Comments {
		ib.Comment(c)
	}

	req, err := d.Request.builder(ctx, registry)
	if err != nil {
		return nil, errors.Wrap(err, "request")
	}
	res, err := d.Response.builder(ctx, registry)
	if err != nil {
		return nil, errors.Wrap(err, "response")
	}
	ib.Request(req).Response(res)

	if v4 {
		return ib.BuildV4()
	}
	return ib.Build()
}

func (d RequestDefinition) builder(ctx context.Context, registry *plugin.Registry) (*contract.RequestBuilder, error) {
	rb := contract.NewRequest().WithResolver(registry)
	if d.Method != "" {
		rb.Method(d.Method)
	}

	path, err := pattern.StringFromTagged(d.Path)
	if err != nil {
		return nil, errors.Wrap(err, "path")
	}
	rb.Path(path)

	for _, name := range sortedNames(d.Query) {
		for _, v := range d.Query[name] {
			p, err := pattern.StringFromTagged(v)
			if err != nil {
				return nil, errors.Wrapf(err, "query %s", name)
			}
			rb.QueryParam(name, p)
		}
	}

	err = d.BodyDefinition.apply(ctx, requestTarget{rb})
	if err != nil {
		return nil, err
	}
	return rb, rb.Err()
}

func (d ResponseDefinition) builder(ctx context.Context, registry *plugin.Registry) (*contract.ResponseBuilder, error) {
	rb := contract.NewResponse().WithResolver(registry)
	if d.Status != 0 {
		rb.Status(d.Status)
	}
	if err := d.BodyDefinition.apply(ctx, responseTarget{rb}); err != nil {
		return nil, err
	}
	return rb, rb.Err()
}

// bodyTarget is the part of the request and response builders a
// BodyDefinition writes to.
type bodyTarget interface {
	header(name string, value pattern.StringPattern)
	contentType(ct string) error
	json(body pattern.JSONPattern)
	text(body pattern.StringPattern, ct string) error
	contents(ctx context.Context, ct string, definition map[string]any) error
}

func (d BodyDefinition) apply(ctx context.Context, t bodyTarget) error {
	for _, name := range sortedNames(d.Headers) {
		for _, v := range d.Headers[name] {
			p, err := pattern.StringFromTagged(v)
			if err != nil {
				return errors.Wrapf(err, "header %s", name)
			}
			t.header(name, p)
		}
	}

	switch {
	case d.Contents != nil:
		return t.contents(ctx, d.ContentType, d.Contents)
	case d.Body == nil:
		if d.ContentType != "" {
			return t.contentType(d.ContentType)
		}
		return nil
	}

	if d.ContentType == "" || plugin.IsJSON(d.ContentType) {
		if d.ContentType != "" {
			if err := t.contentType(d.ContentType); err != nil {
				return err
			}
		}
		body, err := pattern.FromTagged(d.Body)
		if err != nil {
			return errors.Wrap(err, "body")
		}
		t.json(body)
		return nil
	}

	body, err := pattern.StringFromTagged(d.Body)
	if err != nil {
		return errors.Wrapf(err, "%s body", d.ContentType)
	}
	return t.text(body, d.ContentType)
}

type requestTarget struct{ rb *contract.RequestBuilder }

func (t requestTarget) header(name string, value pattern.StringPattern) { t.rb.Header(name, value) }

func (t requestTarget) contentType(ct string) error {
	_, err := t.rb.ContentType(ct)
	return err
}

func (t requestTarget) json(body pattern.JSONPattern) { t.rb.JSONBody(body) }

func (t requestTarget) text(body pattern.StringPattern, ct string) error {
	_, err := t.rb.BodyMatching2(body, ct)
	return err
}

func (t requestTarget) contents(ctx context.Context, ct string, definition map[string]any) error {
	_, err := t.rb.Contents(ctx, ct, definition)
	return err
}

type responseTarget struct{ rb *contract.ResponseBuilder }

func (t responseTarget) header(name string, value pattern.StringPattern) { t.rb.Header(name, value) }

func (t responseTarget) contentType(ct string) error {
	_, err := t.rb.ContentType(ct)
	return err
}

func (t responseTarget) json(body pattern.JSONPattern) { t.rb.JSONBody(body) }

func (t responseTarget) text(body pattern.StringPattern, ct string) error {
	_, err := t.rb.BodyMatching2(body, ct)
	return err
}

func (t responseTarget) contents(ctx context.Context, ct string, definition map[string]any) error {
	_, err := t.rb.Contents(ctx, ct, definition)
	return err
}

func sortedNames(m map[string][]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
