package contract

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
)

// Interaction types, as written to v4 pacts.
const (
	TypeSynchronousHTTP      = "Synchronous/HTTP"
	TypeAsynchronousMessages = "Asynchronous/Messages"
)

// Interaction is one built, immutable exchange of a contract. The set of
// implementations is closed: *RequestResponseInteraction,
// *SynchronousHTTP and *AsynchronousMessage.
type Interaction interface {
	Description() string
	Key() string
	Type() string
	IsV4() bool
	ProviderStates() []ProviderState
	MarshalJSON() ([]byte, error)

	// render returns the pact section and document for the interaction in
	// a v3 or v4 pact.
	render(v4 bool) (string, any)
}

// HTTPInteraction is an interaction the mock server can answer.
type HTTPInteraction interface {
	Interaction
	Request() Request
	Response() Response
}

func interactionKey(typ, description string, states []ProviderState) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(typ))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(description))
	for _, s := range states {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(s.Name))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

type comments struct {
	Text     []string `json:"text,omitempty"`
	TestName string   `json:"testname,omitempty"`
}

func (c comments) orNil() *comments {
	if len(c.Text) == 0 && c.TestName == "" {
		return nil
	}
	return &c
}

// RequestResponseInteraction is the legacy (v3) HTTP interaction.
type RequestResponseInteraction struct {
	key         string
	description string
	states      []ProviderState
	request     Request
	response    Response
}

func (i *RequestResponseInteraction) Description() string { return i.description }
func (i *RequestResponseInteraction) Key() string         { return i.key }
func (i *RequestResponseInteraction) Type() string        { return TypeSynchronousHTTP }
func (i *RequestResponseInteraction) IsV4() bool          { return false }

func (i *RequestResponseInteraction) ProviderStates() []ProviderState {
	return cloneStates(i.states)
}

func (i *RequestResponseInteraction) Request() Request   { return i.request.clone() }
func (i *RequestResponseInteraction) Response() Response { return i.response.clone() }

func (i *RequestResponseInteraction) MarshalJSON() ([]byte, error) {
	_, doc := i.render(false)
	return json.Marshal(doc)
}

type v3Interaction struct {
	Description    string          `json:"description"`
	ProviderStates []ProviderState `json:"providerStates,omitempty"`
	Request        v3Request       `json:"request"`
	Response       v3Response      `json:"response"`
}

func (i *RequestResponseInteraction) render(v4 bool) (string, any) {
	if v4 {
		return (&SynchronousHTTP{
			key:         i.key,
			description: i.description,
			states:      i.states,
			request:     i.request,
			response:    i.response,
		}).render(true)
	}
	return "interactions", v3Interaction{
		Description:    i.description,
		ProviderStates: i.states,
		Request:        i.request.v3(),
		Response:       i.response.v3(),
	}
}

// SynchronousHTTP is the v4 HTTP interaction.
type SynchronousHTTP struct {
	key         string
	description string
	typ         string
	states      []ProviderState
	request     Request
	response    Response
	pending     bool
	comments    comments
	transport   string
}

func (i *SynchronousHTTP) Description() string { return i.description }
func (i *SynchronousHTTP) Key() string         { return i.key }
func (i *SynchronousHTTP) IsV4() bool          { return true }
func (i *SynchronousHTTP) Pending() bool       { return i.pending }
func (i *SynchronousHTTP) Transport() string   { return i.transport }
func (i *SynchronousHTTP) Request() Request    { return i.request.clone() }
func (i *SynchronousHTTP) Response() Response  { return i.response.clone() }

func (i *SynchronousHTTP) Type() string {
	if i.typ == "" {
		return TypeSynchronousHTTP
	}
	return i.typ
}

func (i *SynchronousHTTP) ProviderStates() []ProviderState {
	return cloneStates(i.states)
}

func (i *SynchronousHTTP) MarshalJSON() ([]byte, error) {
	_, doc := i.render(true)
	return json.Marshal(doc)
}

type v4HTTPInteraction struct {
	Type           string          `json:"type"`
	Key            string          `json:"key,omitempty"`
	Description    string          `json:"description"`
	ProviderStates []ProviderState `json:"providerStates,omitempty"`
	Request        v4Request       `json:"request"`
	Response       v4Response      `json:"response"`
	Pending        bool            `json:"pending,omitempty"`
	Comments       *comments       `json:"comments,omitempty"`
	Transport      string          `json:"transport,omitempty"`
}

func (i *SynchronousHTTP) render(v4 bool) (string, any) {
	if !v4 {
		return (&RequestResponseInteraction{
			key:         i.key,
			description: i.description,
			states:      i.states,
			request:     i.request,
			response:    i.response,
		}).render(false)
	}
	return "interactions", v4HTTPInteraction{
		Type:           i.Type(),
		Key:            i.key,
		Description:    i.description,
		ProviderStates: i.states,
		Request:        i.request.v4(),
		Response:       i.response.v4(),
		Pending:        i.pending,
		Comments:       i.comments.orNil(),
		Transport:      i.transport,
	}
}

// AsynchronousMessage is a message interaction. Messages carry a single
// body, the message contents, plus metadata.
type AsynchronousMessage struct {
	key         string
	description string
	states      []ProviderState
	contents    Body
	metadata    map[string]any
	pending     bool
	comments    comments
}

func (m *AsynchronousMessage) Description() string { return m.description }
func (m *AsynchronousMessage) Key() string         { return m.key }
func (m *AsynchronousMessage) Type() string        { return TypeAsynchronousMessages }
func (m *AsynchronousMessage) IsV4() bool          { return true }
func (m *AsynchronousMessage) Pending() bool       { return m.pending }
func (m *AsynchronousMessage) Contents() Body      { return m.contents.clone() }

func (m *AsynchronousMessage) ProviderStates() []ProviderState {
	return cloneStates(m.states)
}

// Metadata returns a copy of the message metadata.
func (m *AsynchronousMessage) Metadata() map[string]any { return cloneMap(m.metadata) }

// Bytes returns the message payload, or an empty slice when the message has
// none. It never fails.
func (m *AsynchronousMessage) Bytes() []byte {
	if m == nil || len(m.contents.Content) == 0 {
		return []byte{}
	}
	return append([]byte{}, m.contents.Content...)
}

func (m *AsynchronousMessage) MarshalJSON() ([]byte, error) {
	_, doc := m.render(true)
	return json.Marshal(doc)
}

type v3Message struct {
	Description    string          `json:"description"`
	ProviderStates []ProviderState `json:"providerStates,omitempty"`
	Contents       any             `json:"contents"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	MatchingRules  ruleSet         `json:"matchingRules,omitempty"`
}

type v4Message struct {
	Type           string          `json:"type"`
	Key            string          `json:"key,omitempty"`
	Description    string          `json:"description"`
	ProviderStates []ProviderState `json:"providerStates,omitempty"`
	Contents       *v4Body         `json:"contents,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	MatchingRules  ruleSet         `json:"matchingRules,omitempty"`
	Pending        bool            `json:"pending,omitempty"`
	Comments       *comments       `json:"comments,omitempty"`
}

func (m *AsynchronousMessage) render(v4 bool) (string, any) {
	rules := ruleSet{}
	rules.addBody(m.contents.Rules)
	if !v4 {
		return "messages", v3Message{
			Description:    m.description,
			ProviderStates: m.states,
			Contents:       m.contents.v3(),
			Metadata:       m.metadata,
			MatchingRules:  rules.orNil(),
		}
	}
	return "interactions", v4Message{
		Type:           m.Type(),
		Key:            m.key,
		Description:    m.description,
		ProviderStates: m.states,
		Contents:       m.contents.v4(),
		Metadata:       m.metadata,
		MatchingRules:  rules.orNil(),
		Pending:        m.pending,
		Comments:       m.comments.orNil(),
	}
}
