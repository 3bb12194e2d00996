package contract

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ProviderState is a named precondition the provider sets up before the
// interaction is verified.
type ProviderState struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

func parseStateParams(name, params string) (ProviderState, error) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(params), &decoded); err != nil {
		return ProviderState{}, errors.Wrapf(ErrInvalidArgument, "params of provider state %q: %s", name, err)
	}
	return ProviderState{Name: name, Params: decoded}, nil
}

func cloneStates(states []ProviderState) []ProviderState {
	if states == nil {
		return nil
	}
	out := make([]ProviderState, len(states))
	for i, s := range states {
		out[i] = ProviderState{Name: s.Name, Params: cloneMap(s.Params)}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	// params and metadata are JSON-like, a JSON round trip is a deep copy
	data, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}
