package plugin

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	log "github.com/sirupsen/logrus"
)

// Manifest identifies an activated plugin.
type Manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Registry holds the active generators and resolves contents definitions
// through them. The core JSON generator is always active.
type Registry struct {
	mu      sync.RWMutex
	loaders []Loader
	active  []Generator
	schemas map[string]*jsonschema.Schema // by schema source
}

// Default is the registry used by builders that are not given another one.
var Default = NewRegistry(BuiltinLoader{})

// NewRegistry returns a registry that activates plugins through loaders, in
// order, the first success winning.
func NewRegistry(loaders ...Loader) *Registry {
	return &Registry{
		loaders: loaders,
		active:  []Generator{NewJSON()},
		schemas: map[string]*jsonschema.Schema{},
	}
}

// Activate loads the named plugin and makes its content types resolvable.
// versionConstraint may be empty. Activating an already active plugin that
// satisfies the constraint is a no-op.
func (r *Registry) Activate(ctx context.Context, name, versionConstraint string) (Manifest, error) {
	r.mu.RLock()
	for _, g := range r.active {
		if g.Name() == name {
			if ok, _ := satisfies(g.Version(), versionConstraint); ok {
				r.mu.RUnlock()
				return Manifest{Name: g.Name(), Version: g.Version()}, nil
			}
		}
	}
	loaders := r.loaders
	r.mu.RUnlock()

	var lastErr error
	for _, l := range loaders {
		g, err := l.Load(ctx, name, versionConstraint)
		if errors.Is(err, errNotFound) {
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}

		r.mu.Lock()
		r.active = append(r.replacing(g.Name()), g)
		r.mu.Unlock()

		log.WithFields(log.Fields{"plugin": g.Name(), "version": g.Version()}).Info("activated plugin")
		return Manifest{Name: g.Name(), Version: g.Version()}, nil
	}
	if lastErr != nil {
		return Manifest{}, errors.Wrapf(ErrPluginFailure, "activate %s %s: %s", name, versionConstraint, lastErr)
	}
	return Manifest{}, errors.Wrapf(ErrPluginFailure, "no plugin named %q matching %q", name, versionConstraint)
}

func (r *Registry) replacing(name string) []Generator {
	out := r.active[:0:0]
	for _, g := range r.active {
		if g.Name() != name {
			out = append(out, g)
		}
	}
	return out
}

// Active lists the active plugins, core generator first.
func (r *Registry) Active() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Manifest, 0, len(r.active))
	for _, g := range r.active {
		out = append(out, Manifest{Name: g.Name(), Version: g.Version()})
	}
	return out
}

// Generator returns the most recently activated generator for contentType.
func (r *Registry) Generator(contentType string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.active) - 1; i >= 0; i-- {
		if handles(r.active[i], contentType) {
			return r.active[i], true
		}
	}
	return nil, false
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ctx context.Context, contentType string, definition map[string]any) (*Content, error) {
	g, ok := r.Generator(contentType)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownContentType, "%q", contentType)
	}
	if err := r.validate(g, definition); err != nil {
		return nil, err
	}

	p, err := ParseDefinition(definition)
	if err != nil {
		if !errors.Is(err, ErrInvalidDefinition) {
			err = errors.Wrapf(ErrInvalidDefinition, "%s", err)
		}
		return nil, err
	}
	rule := pattern.ToMatchRule(p)

	body, err := g.Generate(ctx, contentType, rule.Example)
	if err != nil {
		return nil, errors.Wrapf(ErrPluginFailure, "%s generating %q: %s", g.Name(), contentType, err)
	}
	return &Content{
		ContentType: contentType,
		Body:        body,
		Rules:       rule.Rules,
		Metadata:    map[string]any{"contentType": contentType},
		Plugin:      g.Name(),
	}, nil
}

// Decode turns a body into the JSON-like form rules are evaluated against.
// Bodies with no active generator decode to their text.
func (r *Registry) Decode(contentType string, body []byte) (any, error) {
	if g, ok := r.Generator(contentType); ok {
		v, err := g.Decode(contentType, body)
		if err != nil {
			return nil, errors.Wrapf(ErrPluginFailure, "%s: %s", g.Name(), err)
		}
		return v, nil
	}
	return string(body), nil
}

func (r *Registry) validate(g Generator, definition map[string]any) error {
	schema, err := r.schema(g)
	if err != nil {
		return errors.Wrapf(ErrPluginFailure, "%s schema: %s", g.Name(), err)
	}
	if schema == nil {
		return nil
	}
	// the validator expects decoded JSON values
	data, err := json.Marshal(definition)
	if err != nil {
		return errors.Wrapf(ErrInvalidDefinition, "%s", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(ErrInvalidDefinition, "%s", err)
	}
	if err := schema.Validate(doc); err != nil {
		return errors.Wrapf(ErrInvalidDefinition, "%s", err)
	}
	return nil
}

func (r *Registry) schema(g Generator) (*jsonschema.Schema, error) {
	src := g.Schema()
	if src == "" {
		return nil, nil
	}
	r.mu.RLock()
	s, ok := r.schemas[src]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	url := strings.ReplaceAll(g.Name(), "/", "-") + ".schema.json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, err
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.schemas[src]; ok {
		return cached, nil
	}
	r.schemas[src] = s
	return s, nil
}
