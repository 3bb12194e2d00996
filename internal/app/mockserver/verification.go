package mockserver

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/pkg/errors"
)

// UnmatchedRequest is a request no interaction accepted, with the reasons
// per interaction description.
type UnmatchedRequest struct {
	Method     string                        `json:"method"`
	Path       string                        `json:"path"`
	Query      string                        `json:"query,omitempty"`
	Received   time.Time                     `json:"received"`
	Mismatches map[string][]pattern.Mismatch `json:"mismatches,omitempty"`
	Violations map[string][]string           `json:"violations,omitempty"`
}

// InteractionResult is the request count of one interaction.
type InteractionResult struct {
	Key          string `json:"key"`
	Description  string `json:"description"`
	RequestCount int    `json:"request_count"`
}

// Verification summarises a mock server session.
type Verification struct {
	Interactions []InteractionResult `json:"interactions"`
	Unmatched    []UnmatchedRequest  `json:"unmatched,omitempty"`
}

// Missing lists the descriptions of interactions that received no request.
func (v *Verification) Missing() []string {
	var out []string
	for _, i := range v.Interactions {
		if i.RequestCount == 0 {
			out = append(out, i.Description)
		}
	}
	return out
}

// OK reports whether every interaction was exercised and every request
// matched.
func (v *Verification) OK() bool {
	return len(v.Unmatched) == 0 && len(v.Missing()) == 0
}

// Err returns ErrVerificationFailed with a summary when the session is not OK.
func (v *Verification) Err() error {
	if v.OK() {
		return nil
	}
	var parts []string
	if missing := v.Missing(); len(missing) > 0 {
		parts = append(parts, "never exercised: "+strings.Join(missing, ", "))
	}
	for _, u := range v.Unmatched {
		parts = append(parts, "unmatched request "+u.Method+" "+u.Path)
	}
	return errors.Wrap(ErrVerificationFailed, strings.Join(parts, "; "))
}

// unmatchedLog collects unmatched requests across handler goroutines.
type unmatchedLog struct {
	mu       sync.Mutex
	requests []UnmatchedRequest
}

func (l *unmatchedLog) add(u UnmatchedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, u)
}

func (l *unmatchedLog) all() []UnmatchedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]UnmatchedRequest(nil), l.requests...)
}

func verify(interactions *Interactions, unmatched *unmatchedLog) *Verification {
	v := &Verification{Interactions: []InteractionResult{}}
	for _, i := range interactions.All() {
		v.Interactions = append(v.Interactions, InteractionResult{
			Key:          i.Key,
			Description:  i.Description,
			RequestCount: i.getRequestCount(),
		})
	}
	v.Unmatched = unmatched.all()
	sort.SliceStable(v.Unmatched, func(a, b int) bool { return v.Unmatched[a].Received.Before(v.Unmatched[b].Received) })
	return v
}
