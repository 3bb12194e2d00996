package contract

import (
	"context"
	"encoding/json"

	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/pkg/errors"
)

// Pact specification versions written to metadata.
const (
	SpecV3 = "3.0.0"
	SpecV4 = "4.0"
)

// PactBuilder accumulates the interactions of one consumer/provider
// contract. Interactions are only ever appended.
type PactBuilder struct {
	guard
	consumer     string
	provider     string
	v4           bool
	interactions []Interaction
	plugins      []plugin.Manifest
	registry     *plugin.Registry
}

// New starts a legacy (v3) contract.
func New(consumer, provider string) *PactBuilder {
	return &PactBuilder{consumer: consumer, provider: provider, registry: plugin.Default}
}

// NewV4 starts a v4 contract.
func NewV4(consumer, provider string) *PactBuilder {
	b := New(consumer, provider)
	b.v4 = true
	return b
}

// IsV4 reports whether the contract uses the v4 format.
func (b *PactBuilder) IsV4() bool { return b.v4 }

// WithRegistry sets the plugin registry used by ActivatePlugin. Builders
// resolving contents for this contract should use the same registry.
func (b *PactBuilder) WithRegistry(r *plugin.Registry) *PactBuilder {
	b.chain("WithRegistry", func() error {
		if r == nil {
			return errors.Wrap(ErrInvalidArgument, "nil plugin registry")
		}
		b.registry = r
		return nil
	})
	return b
}

// Registry returns the plugin registry of the contract.
func (b *PactBuilder) Registry() *plugin.Registry { return b.registry }

// PushInteraction appends an interaction.
func (b *PactBuilder) PushInteraction(i Interaction) *PactBuilder {
	b.chain("PushInteraction", func() error {
		if i == nil {
			return errors.Wrap(ErrInvalidArgument, "nil interaction")
		}
		b.interactions = append(b.interactions, i)
		return nil
	})
	return b
}

// Interactions returns the interactions in push order.
func (b *PactBuilder) Interactions() ([]Interaction, error) {
	if err := b.acquire("Interactions"); err != nil {
		return nil, err
	}
	defer b.release()
	return append([]Interaction(nil), b.interactions...), nil
}

// Messages returns an iterator over the message interactions, in push
// order. The iterator sees the interactions pushed before the call.
func (b *PactBuilder) Messages() (*MessageIter, error) {
	interactions, err := b.Interactions()
	if err != nil {
		return nil, err
	}
	return &MessageIter{interactions: interactions}, nil
}

// ActivatePlugin loads a plugin so its content types can be resolved. It
// may read plugin manifests from disk and must complete before interactions
// using the plugin's content types are built.
func (b *PactBuilder) ActivatePlugin(ctx context.Context, name, version string) (*PactBuilder, error) {
	if err := b.acquire("ActivatePlugin"); err != nil {
		return b, err
	}
	defer b.release()
	m, err := b.registry.Activate(ctx, name, version)
	if err != nil {
		return b, err
	}
	for i, p := range b.plugins {
		if p.Name == m.Name {
			b.plugins[i] = m
			return b, nil
		}
	}
	b.plugins = append(b.plugins, m)
	return b, nil
}

// Plugins returns the plugins activated for this contract.
func (b *PactBuilder) Plugins() ([]plugin.Manifest, error) {
	if err := b.acquire("Plugins"); err != nil {
		return nil, err
	}
	defer b.release()
	return append([]plugin.Manifest(nil), b.plugins...), nil
}

// Err returns the first failure of a chainable method since the last Pact.
func (b *PactBuilder) Err() error { return b.firstErr() }

// Pact returns an immutable snapshot of the contract.
func (b *PactBuilder) Pact() (*Pact, error) {
	if err := b.acquire("Pact"); err != nil {
		return nil, err
	}
	defer b.release()
	if err := b.takeErr(); err != nil {
		return nil, err
	}
	return &Pact{
		Consumer:     b.consumer,
		Provider:     b.provider,
		V4:           b.v4,
		Interactions: append([]Interaction(nil), b.interactions...),
		Plugins:      append([]plugin.Manifest(nil), b.plugins...),
		Registry:     b.registry,
	}, nil
}

// Pact is a contract snapshot. Interactions are immutable, so a snapshot
// can be shared with a running mock server.
type Pact struct {
	Consumer     string
	Provider     string
	V4           bool
	Interactions []Interaction
	Plugins      []plugin.Manifest
	Registry     *plugin.Registry
}

// HTTPInteractions returns the interactions a mock server answers.
func (p *Pact) HTTPInteractions() []HTTPInteraction {
	var out []HTTPInteraction
	for _, i := range p.Interactions {
		if h, ok := i.(HTTPInteraction); ok {
			out = append(out, h)
		}
	}
	return out
}

// SpecVersion returns the pact specification version of the snapshot.
func (p *Pact) SpecVersion() string {
	if p.V4 {
		return SpecV4
	}
	return SpecV3
}

type pactName struct {
	Name string `json:"name"`
}

type pactDocument struct {
	Consumer     pactName         `json:"consumer"`
	Provider     pactName         `json:"provider"`
	Interactions []any            `json:"interactions"`
	Messages     []any            `json:"messages,omitempty"`
	Metadata     pactDocumentMeta `json:"metadata"`
}

type pactDocumentMeta struct {
	PactSpecification struct {
		Version string `json:"version"`
	} `json:"pactSpecification"`
	Plugins []plugin.Manifest `json:"plugins,omitempty"`
}

// MarshalJSON renders the contract in the pact format of its version.
func (p *Pact) MarshalJSON() ([]byte, error) {
	doc := pactDocument{
		Consumer:     pactName{Name: p.Consumer},
		Provider:     pactName{Name: p.Provider},
		Interactions: []any{},
	}
	doc.Metadata.PactSpecification.Version = p.SpecVersion()
	doc.Metadata.Plugins = p.Plugins
	for _, i := range p.Interactions {
		section, v := i.render(p.V4)
		if section == "messages" {
			doc.Messages = append(doc.Messages, v)
			continue
		}
		doc.Interactions = append(doc.Interactions, v)
	}
	return json.Marshal(doc)
}

// MessageIter walks the message interactions of a contract. It is lazy and
// cannot be restarted once consumed.
type MessageIter struct {
	interactions []Interaction
	pos          int
}

// Next returns the next message, or false when there are no more.
func (it *MessageIter) Next() (*AsynchronousMessage, bool) {
	for it.pos < len(it.interactions) {
		i := it.interactions[it.pos]
		it.pos++
		if m, ok := i.(*AsynchronousMessage); ok {
			return m, true
		}
	}
	return nil, false
}

// Collect drains the iterator.
func (it *MessageIter) Collect() []*AsynchronousMessage {
	var out []*AsynchronousMessage
	for m, ok := it.Next(); ok; m, ok = it.Next() {
		out = append(out, m)
	}
	return out
}
