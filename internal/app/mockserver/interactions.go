package mockserver

import (
	"sync"

	"github.com/form3tech-oss/pact-consumer/internal/app/contract"
)

// Interactions is the registry of one mock server. The set is fixed at
// start; lookups by description or key go through a sync.Map, matching walks
// the contract order.
type Interactions struct {
	interactions sync.Map
	ordered      []*interaction
}

func newInteractions(pact *contract.Pact, recordHistory bool) *Interactions {
	r := &Interactions{}
	for _, i := range pact.HTTPInteractions() {
		r.Store(newInteraction(i, recordHistory))
	}
	return r
}

func (r *Interactions) Store(i *interaction) {
	r.ordered = append(r.ordered, i)
	r.interactions.LoadOrStore(i.Description, i)
	if i.Key != "" {
		r.interactions.LoadOrStore(i.Key, i)
	}
}

func (r *Interactions) Load(key string) (*interaction, bool) {
	result, ok := r.interactions.Load(key)
	if !ok {
		return nil, false
	}
	return result.(*interaction), true
}

func (r *Interactions) All() []*interaction {
	return r.ordered
}

func (r *Interactions) AllHaveRequests() bool {
	for _, i := range r.ordered {
		if !i.HasRequests(1) {
			return false
		}
	}
	return true
}
