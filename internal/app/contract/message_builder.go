package contract

import (
	"context"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/pkg/errors"
)

// MessageBuilder accumulates one asynchronous message interaction.
type MessageBuilder struct {
	guard
	meta
	metadata map[string]any
	contents Body
	resolver plugin.Resolver
}

// NewMessage starts a message interaction.
func NewMessage(description string) *MessageBuilder {
	return &MessageBuilder{meta: meta{description: description}, resolver: plugin.Default}
}

// WithResolver sets the resolver used by Contents.
func (b *MessageBuilder) WithResolver(r plugin.Resolver) *MessageBuilder {
	b.chain("WithResolver", func() error {
		b.resolver = r
		return nil
	})
	return b
}

func (b *MessageBuilder) Given(state string) *MessageBuilder {
	b.chain("Given", func() error {
		b.states = append(b.states, ProviderState{Name: state})
		return nil
	})
	return b
}

// GivenWithParams adds a provider state whose parameters are a JSON object.
func (b *MessageBuilder) GivenWithParams(state, params string) (*MessageBuilder, error) {
	if err := b.acquire("GivenWithParams"); err != nil {
		return b, err
	}
	defer b.release()
	ps, err := parseStateParams(state, params)
	if err != nil {
		return b, err
	}
	b.states = append(b.states, ps)
	return b, nil
}

func (b *MessageBuilder) GivenWith(state string, params map[string]any) *MessageBuilder {
	b.chain("GivenWith", func() error {
		b.states = append(b.states, ProviderState{Name: state, Params: cloneMap(params)})
		return nil
	})
	return b
}

func (b *MessageBuilder) WithKey(key string) *MessageBuilder {
	b.chain("WithKey", func() error {
		b.key = key
		return nil
	})
	return b
}

func (b *MessageBuilder) Pending(pending bool) *MessageBuilder {
	b.chain("Pending", func() error {
		b.pending = pending
		return nil
	})
	return b
}

func (b *MessageBuilder) Comment(comment string) *MessageBuilder {
	b.chain("Comment", func() error {
		b.comments.Text = append(b.comments.Text, comment)
		return nil
	})
	return b
}

func (b *MessageBuilder) TestName(name string) *MessageBuilder {
	b.chain("TestName", func() error {
		b.comments.TestName = name
		return nil
	})
	return b
}

// Metadata sets a message metadata entry, e.g. the destination topic.
func (b *MessageBuilder) Metadata(key string, value any) *MessageBuilder {
	b.chain("Metadata", func() error {
		if b.metadata == nil {
			b.metadata = map[string]any{}
		}
		b.metadata[key] = value
		return nil
	})
	return b
}

// JSONBody sets the message contents from a JSON pattern.
func (b *MessageBuilder) JSONBody(body pattern.JSONPattern) *MessageBuilder {
	b.chain("JSONBody", func() error {
		c, err := jsonBody(body, applicationJSON)
		if err != nil {
			return errors.Wrapf(ErrInvalidArgument, "json body: %s", err)
		}
		b.contents = c
		return nil
	})
	return b
}

// Contents resolves a contents definition through the plugin resolver and
// uses the result as the message contents.
func (b *MessageBuilder) Contents(ctx context.Context, contentType string, definition map[string]any) (*MessageBuilder, error) {
	if err := b.acquire("Contents"); err != nil {
		return b, err
	}
	defer b.release()
	if err := validContentType(contentType); err != nil {
		return b, err
	}
	c, err := b.resolver.Resolve(ctx, contentType, definition)
	if err != nil {
		return b, err
	}
	b.contents = contentBody(c)
	return b, nil
}

// Err returns the first failure of a chainable method since the last Build.
func (b *MessageBuilder) Err() error { return b.firstErr() }

// Build freezes the builder into a message. The builder is not reset.
func (b *MessageBuilder) Build() (*AsynchronousMessage, error) {
	if err := b.acquire("Build"); err != nil {
		return nil, err
	}
	defer b.release()
	if err := b.takeErr(); err != nil {
		return nil, err
	}
	m := b.meta.clone()
	return &AsynchronousMessage{
		key:         m.keyFor(TypeAsynchronousMessages),
		description: m.description,
		states:      m.states,
		contents:    b.contents.clone(),
		metadata:    cloneMap(b.metadata),
		pending:     m.pending,
		comments:    m.comments,
	}, nil
}
