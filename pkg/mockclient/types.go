package mockclient

import (
	"github.com/form3tech-oss/pact-consumer/internal/app/configuration"
	"github.com/form3tech-oss/pact-consumer/internal/app/mockserver"
)

type (
	Definition              = configuration.Definition
	PluginDefinition        = configuration.PluginDefinition
	InteractionDefinition   = configuration.InteractionDefinition
	ProviderStateDefinition = configuration.ProviderStateDefinition
	RequestDefinition       = configuration.RequestDefinition
	ResponseDefinition      = configuration.ResponseDefinition
	BodyDefinition          = configuration.BodyDefinition
	ServerInfo              = configuration.ServerInfo

	Verification      = mockserver.Verification
	UnmatchedRequest  = mockserver.UnmatchedRequest
	InteractionResult = mockserver.InteractionResult
)

// Interaction is the runtime state of an interaction as reported by
// MockServer.Interactions.
type Interaction struct {
	Key            string           `json:"key"`
	Description    string           `json:"description"`
	Method         string           `json:"method"`
	Path           string           `json:"path"`
	RequestCount   int              `json:"request_count"`
	RequestHistory []map[string]any `json:"request_history,omitempty"`
	LastRequest    map[string]any   `json:"last_request,omitempty"`
}
