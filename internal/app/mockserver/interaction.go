package mockserver

import (
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/PaesslerAG/jsonpath"
	"github.com/form3tech-oss/pact-consumer/internal/app/contract"
	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// interaction is the runtime state of one contract interaction: the compiled
// expectation plus the requests it matched and the constraints and modifiers
// added through the control endpoints.
type interaction struct {
	mu             sync.RWMutex
	Key            string            `json:"key"`
	Description    string            `json:"description"`
	Method         string            `json:"method"`
	Path           string            `json:"path"`
	RequestCount   int               `json:"request_count"`
	RequestHistory []requestDocument `json:"request_history,omitempty"`
	LastRequest    requestDocument   `json:"last_request,omitempty"`
	request        contract.Request
	response       contract.Response
	path           pattern.MatchRule
	constraints    map[string]Constraint
	modifiers      map[string]Modifier
	recordHistory  bool
}

func newInteraction(i contract.HTTPInteraction, recordHistory bool) *interaction {
	req := i.Request()
	path := pattern.StringPattern(pattern.StringLiteral("/"))
	if req.Path != nil {
		path = req.Path
	}
	return &interaction{
		Key:           i.Key(),
		Description:   i.Description(),
		Method:        req.Method,
		Path:          path.Example(),
		request:       req,
		response:      i.Response(),
		path:          pattern.ToStringMatchRule(path),
		constraints:   map[string]Constraint{},
		modifiers:     map[string]Modifier{},
		recordHistory: recordHistory,
	}
}

// match compares a received request with the expectation and returns every
// difference. An empty result means the request satisfies the contract.
func (i *interaction) match(req *http.Request, body []byte, registry *plugin.Registry) []pattern.Mismatch {
	var mismatches []pattern.Mismatch
	if !strings.EqualFold(req.Method, i.Method) {
		mismatches = append(mismatches, pattern.Mismatch{
			Path: "method", Expected: i.Method, Actual: req.Method,
			Message: fmt.Sprintf("expected method %s but got %s", i.Method, req.Method),
		})
	}
	for _, m := range i.path.Match(req.URL.Path) {
		m.Path = "path"
		mismatches = append(mismatches, m)
	}
	mismatches = append(mismatches, i.matchQuery(req)...)
	mismatches = append(mismatches, i.matchHeaders(req)...)
	mismatches = append(mismatches, i.matchBody(req, body, registry)...)
	return mismatches
}

func (i *interaction) matchQuery(req *http.Request) []pattern.Mismatch {
	var mismatches []pattern.Mismatch
	actual := req.URL.Query()
	for _, name := range sortedKeys(i.request.Query) {
		mismatches = append(mismatches, matchValues("query."+name, i.request.Query[name], actual[name], false)...)
	}
	for name := range actual {
		if _, ok := i.request.Query[name]; !ok {
			mismatches = append(mismatches, pattern.Mismatch{
				Path: "query." + name, Actual: actual[name],
				Message: fmt.Sprintf("unexpected query parameter %q", name),
			})
		}
	}
	return mismatches
}

// matchHeaders checks the expected headers only; names compare
// case-insensitively.
func (i *interaction) matchHeaders(req *http.Request) []pattern.Mismatch {
	var mismatches []pattern.Mismatch
	for _, name := range sortedKeys(i.request.Headers) {
		actual := req.Header.Values(name)
		if len(actual) == 1 && len(i.request.Headers[name]) > 1 {
			actual = splitHeader(actual[0])
		}
		mediaType := strings.EqualFold(name, "Content-Type")
		mismatches = append(mismatches, matchValues("header."+name, i.request.Headers[name], actual, mediaType)...)
	}
	return mismatches
}

func splitHeader(v string) []string {
	parts := strings.Split(v, ",")
	for n := range parts {
		parts[n] = strings.TrimSpace(parts[n])
	}
	return parts
}

func matchValues(where string, expected []pattern.StringPattern, actual []string, mediaType bool) []pattern.Mismatch {
	if len(actual) < len(expected) {
		return []pattern.Mismatch{{
			Path: where, Expected: examples(expected), Actual: actual,
			Message: fmt.Sprintf("expected %d value(s) but got %d", len(expected), len(actual)),
		}}
	}
	var mismatches []pattern.Mismatch
	for n, p := range expected {
		rule := pattern.ToStringMatchRule(p)
		value := actual[n]
		if mediaType && len(rule.Rules) == 0 && sameMediaType(p.Example(), value) {
			continue
		}
		for _, m := range rule.Match(value) {
			m.Path = fmt.Sprintf("%s[%d]", where, n)
			mismatches = append(mismatches, m)
		}
	}
	return mismatches
}

// sameMediaType compares content types without their parameters unless the
// expectation names parameters itself.
func sameMediaType(expected, actual string) bool {
	em, eparams, err := mime.ParseMediaType(expected)
	if err != nil {
		return false
	}
	am, aparams, err := mime.ParseMediaType(actual)
	if err != nil || em != am {
		return false
	}
	for k, v := range eparams {
		if !strings.EqualFold(aparams[k], v) {
			return false
		}
	}
	return true
}

func (i *interaction) matchBody(req *http.Request, body []byte, registry *plugin.Registry) []pattern.Mismatch {
	expected := i.request.Body
	if !expected.Present() {
		return nil
	}
	want, err := registry.Decode(expected.ContentType, expected.Content)
	if err != nil {
		return []pattern.Mismatch{{Path: "body", Message: fmt.Sprintf("undecodable contract body: %s", err)}}
	}
	ct := req.Header.Get("Content-Type")
	if ct == "" {
		ct = expected.ContentType
	}
	var got any = ""
	if len(body) > 0 {
		if got, err = registry.Decode(ct, body); err != nil {
			return []pattern.Mismatch{{Path: "body", Actual: string(body), Message: fmt.Sprintf("undecodable request body: %s", err)}}
		}
	}
	mismatches := pattern.Compare(want, got, expected.Rules, pattern.Options{})
	for n := range mismatches {
		mismatches[n].Path = "body" + strings.TrimPrefix(mismatches[n].Path, "$")
	}
	return mismatches
}

func (i *interaction) AddConstraint(c Constraint) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.constraints[c.key()] = c
}

func (i *interaction) AddModifier(m Modifier) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.modifiers[m.key()] = m
}

func (i *interaction) loadValuesFromSource(c Constraint, interactions *Interactions) ([]any, error) {
	values := append([]any(nil), c.Values...)
	source, ok := interactions.Load(c.Source)
	if !ok {
		return nil, errors.Errorf("cannot find source interaction '%s' for constraint", c.Source)
	}

	sourceRequest := source.lastRequest()
	if sourceRequest == nil {
		return nil, errors.Errorf("source interaction '%s' has no requests", c.Source)
	}

	for n, v := range c.Values {
		expr, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("constraint value %v is not a JSONPath expression", v)
		}
		values[n], _ = jsonpath.Get(expr, map[string]any(sourceRequest))
	}
	return values, nil
}

// evaluateConstraints checks the constraints added through the control
// endpoints against a request that already satisfies the contract.
func (i *interaction) evaluateConstraints(request requestDocument, interactions *Interactions) (bool, []string) {
	i.mu.RLock()
	constraints := make([]Constraint, 0, len(i.constraints))
	for _, c := range i.constraints {
		constraints = append(constraints, c)
	}
	i.mu.RUnlock()

	result := true
	violations := make([]string, 0)
	for _, c := range constraints {
		values := c.Values
		if c.Source != "" {
			var err error
			values, err = i.loadValuesFromSource(c, interactions)
			if err != nil {
				violations = append(violations, err.Error())
				result = false
				continue
			}
		}

		val, err := jsonpath.Get(request.encodeValues(c.Path), map[string]any(request))
		if err != nil {
			log.Warn(err)
		}
		if c.Format != fmtLen && reflect.TypeOf(val) == reflect.TypeOf([]any{}) {
			log.Infof("skipping matching on array value for path '%s'", c.Path)
			continue
		}
		if err != nil {
			val = ""
		}

		if err := c.check(values, val); err != nil {
			violations = append(violations, err.Error())
			result = false
		}
	}
	return result, violations
}

// storeRequest records a matched request and returns its 1-based attempt
// number.
func (i *interaction) storeRequest(request requestDocument) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.LastRequest = request
	i.RequestCount++
	if i.recordHistory {
		i.RequestHistory = append(i.RequestHistory, request)
	}
	return i.RequestCount
}

func (i *interaction) lastRequest() requestDocument {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.LastRequest
}

func (i *interaction) HasRequests(count int) bool {
	return i.getRequestCount() >= count
}

func (i *interaction) getRequestCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.RequestCount
}

// activeModifiers returns the modifiers sorted by path so they apply in a
// stable order.
func (i *interaction) activeModifiers() []Modifier {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Modifier, 0, len(i.modifiers))
	for _, m := range i.modifiers {
		out = append(out, m)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Path < out[b].Path })
	return out
}

// snapshot copies the exported state for JSON rendering.
func (i *interaction) snapshot() *interaction {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return &interaction{
		Key:            i.Key,
		Description:    i.Description,
		Method:         i.Method,
		Path:           i.Path,
		RequestCount:   i.RequestCount,
		RequestHistory: append([]requestDocument(nil), i.RequestHistory...),
		LastRequest:    i.LastRequest,
	}
}

func sortedKeys(m map[string][]pattern.StringPattern) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func examples(patterns []pattern.StringPattern) []string {
	out := make([]string, len(patterns))
	for n, p := range patterns {
		out[n] = p.Example()
	}
	return out
}
