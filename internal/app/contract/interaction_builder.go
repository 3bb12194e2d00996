package contract

import (
	"github.com/pkg/errors"
)

// meta is the state interactions and messages have in common.
type meta struct {
	description string
	states      []ProviderState
	key         string
	pending     bool
	comments    comments
}

func (m meta) clone() meta {
	return meta{
		description: m.description,
		states:      cloneStates(m.states),
		key:         m.key,
		pending:     m.pending,
		comments: comments{
			Text:     append([]string(nil), m.comments.Text...),
			TestName: m.comments.TestName,
		},
	}
}

func (m meta) keyFor(typ string) string {
	if m.key != "" {
		return m.key
	}
	return interactionKey(typ, m.description, m.states)
}

// InteractionBuilder accumulates one HTTP interaction.
type InteractionBuilder struct {
	guard
	meta
	interactionType string
	transport       string
	request         Request
	response        Response
}

// NewInteraction starts an interaction. interactionType is the v4 type and
// defaults to Synchronous/HTTP when empty.
func NewInteraction(description, interactionType string) *InteractionBuilder {
	return &InteractionBuilder{
		meta:            meta{description: description},
		interactionType: interactionType,
		request:         defaultRequest(),
		response:        defaultResponse(),
	}
}

// Given adds a provider state without parameters.
func (b *InteractionBuilder) Given(state string) *InteractionBuilder {
	b.chain("Given", func() error {
		b.states = append(b.states, ProviderState{Name: state})
		return nil
	})
	return b
}

// GivenWithParams adds a provider state whose parameters are a JSON object.
// Unparsable parameters fail with ErrInvalidArgument and add nothing.
func (b *InteractionBuilder) GivenWithParams(state, params string) (*InteractionBuilder, error) {
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

// GivenWith adds a provider state with already decoded parameters.
func (b *InteractionBuilder) GivenWith(state string, params map[string]any) *InteractionBuilder {
	b.chain("GivenWith", func() error {
		b.states = append(b.states, ProviderState{Name: state, Params: cloneMap(params)})
		return nil
	})
	return b
}

// WithKey sets a stable key. Without one, the key is derived from the type,
// description and provider states.
func (b *InteractionBuilder) WithKey(key string) *InteractionBuilder {
	b.chain("WithKey", func() error {
		b.key = key
		return nil
	})
	return b
}

func (b *InteractionBuilder) Pending(pending bool) *InteractionBuilder {
	b.chain("Pending", func() error {
		b.pending = pending
		return nil
	})
	return b
}

func (b *InteractionBuilder) Comment(comment string) *InteractionBuilder {
	b.chain("Comment", func() error {
		b.comments.Text = append(b.comments.Text, comment)
		return nil
	})
	return b
}

func (b *InteractionBuilder) TestName(name string) *InteractionBuilder {
	b.chain("TestName", func() error {
		b.comments.TestName = name
		return nil
	})
	return b
}

func (b *InteractionBuilder) Transport(name string) *InteractionBuilder {
	b.chain("Transport", func() error {
		b.transport = name
		return nil
	})
	return b
}

// Request copies the current state of rb into the interaction. Later
// changes to rb are not seen.
func (b *InteractionBuilder) Request(rb *RequestBuilder) *InteractionBuilder {
	b.chain("Request", func() error {
		if rb == nil {
			return errors.Wrap(ErrInvalidArgument, "nil request builder")
		}
		req, err := rb.Build()
		if err != nil {
			return errors.Wrap(err, "request")
		}
		b.request = req
		return nil
	})
	return b
}

// Response copies the current state of rb into the interaction.
func (b *InteractionBuilder) Response(rb *ResponseBuilder) *InteractionBuilder {
	b.chain("Response", func() error {
		if rb == nil {
			return errors.Wrap(ErrInvalidArgument, "nil response builder")
		}
		resp, err := rb.Build()
		if err != nil {
			return errors.Wrap(err, "response")
		}
		b.response = resp
		return nil
	})
	return b
}

// Err returns the first failure of a chainable method since the last Build.
func (b *InteractionBuilder) Err() error { return b.firstErr() }

func (b *InteractionBuilder) begin(op string) error {
	if err := b.acquire(op); err != nil {
		return err
	}
	if err := b.takeErr(); err != nil {
		b.release()
		return err
	}
	return nil
}

// Build freezes the builder into a legacy interaction. Calling it again
// returns an independent, equal snapshot; the builder is not reset.
func (b *InteractionBuilder) Build() (*RequestResponseInteraction, error) {
	if err := b.begin("Build"); err != nil {
		return nil, err
	}
	defer b.release()
	m := b.meta.clone()
	return &RequestResponseInteraction{
		key:         m.keyFor(TypeSynchronousHTTP),
		description: m.description,
		states:      m.states,
		request:     b.request.clone(),
		response:    b.response.clone(),
	}, nil
}

// BuildV4 is Build for the v4 representation, which also carries the
// pending flag, comments and transport.
func (b *InteractionBuilder) BuildV4() (*SynchronousHTTP, error) {
	if err := b.begin("BuildV4"); err != nil {
		return nil, err
	}
	defer b.release()
	m := b.meta.clone()
	i := &SynchronousHTTP{
		description: m.description,
		typ:         b.interactionType,
		states:      m.states,
		request:     b.request.clone(),
		response:    b.response.clone(),
		pending:     m.pending,
		comments:    m.comments,
		transport:   b.transport,
	}
	i.key = m.keyFor(i.Type())
	return i, nil
}
