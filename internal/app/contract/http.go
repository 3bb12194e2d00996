package contract

import (
	"sort"
	"strings"

	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
)

// Generator replaces a generated value with one computed from provider
// state when the provider verifies the interaction.
type Generator struct {
	// Category is "path" or "header".
	Category   string
	Key        string
	Expression string
}

// Request is an immutable snapshot of an expected HTTP request.
type Request struct {
	Method     string
	Path       pattern.StringPattern
	Query      map[string][]pattern.StringPattern
	Headers    map[string][]pattern.StringPattern
	Body       Body
	Generators []Generator
}

// Response is an immutable snapshot of the HTTP response to replay.
type Response struct {
	Status     int
	Headers    map[string][]pattern.StringPattern
	Body       Body
	Generators []Generator
}

func defaultRequest() Request {
	return Request{Method: "GET", Path: pattern.StringLiteral("/")}
}

func defaultResponse() Response {
	return Response{Status: 200}
}

func (r Request) clone() Request {
	return Request{
		Method:     r.Method,
		Path:       r.Path,
		Query:      clonePatterns(r.Query),
		Headers:    clonePatterns(r.Headers),
		Body:       r.Body.clone(),
		Generators: append([]Generator(nil), r.Generators...),
	}
}

func (r Response) clone() Response {
	return Response{
		Status:     r.Status,
		Headers:    clonePatterns(r.Headers),
		Body:       r.Body.clone(),
		Generators: append([]Generator(nil), r.Generators...),
	}
}

func clonePatterns(m map[string][]pattern.StringPattern) map[string][]pattern.StringPattern {
	if m == nil {
		return nil
	}
	out := make(map[string][]pattern.StringPattern, len(m))
	for k, v := range m {
		out[k] = append([]pattern.StringPattern(nil), v...)
	}
	return out
}

// headerName returns the key under which name is already stored, compared
// case-insensitively, or name itself.
func headerName(headers map[string][]pattern.StringPattern, name string) string {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return name
}

// HeaderValue returns the example of the first value of a header.
func HeaderValue(headers map[string][]pattern.StringPattern, name string) (string, bool) {
	values, ok := headers[headerName(headers, name)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0].Example(), true
}

func setHeader(headers map[string][]pattern.StringPattern, name string, value pattern.StringPattern) map[string][]pattern.StringPattern {
	if headers == nil {
		headers = map[string][]pattern.StringPattern{}
	}
	delete(headers, headerName(headers, name))
	headers[name] = []pattern.StringPattern{value}
	return headers
}

func addHeader(headers map[string][]pattern.StringPattern, name string, value pattern.StringPattern) map[string][]pattern.StringPattern {
	if headers == nil {
		headers = map[string][]pattern.StringPattern{}
	}
	k := headerName(headers, name)
	headers[k] = append(headers[k], value)
	return headers
}

type matcherList struct {
	Matchers []pattern.Rule `json:"matchers"`
	Combine  string         `json:"combine,omitempty"`
}

type ruleSet map[string]any

func (s ruleSet) addBody(rules pattern.Rules) {
	if len(rules) == 0 {
		return
	}
	body := map[string]matcherList{}
	for _, path := range rules.Paths() {
		body[path] = matcherList{Matchers: rules[path], Combine: "AND"}
	}
	s["body"] = body
}

func (s ruleSet) addNamed(category string, values map[string][]pattern.StringPattern) {
	named := map[string]matcherList{}
	for name, patterns := range values {
		var matchers []pattern.Rule
		for _, p := range patterns {
			matchers = append(matchers, pattern.ToStringMatchRule(p).Rules["$"]...)
		}
		if len(matchers) > 0 {
			named[name] = matcherList{Matchers: matchers, Combine: "AND"}
		}
	}
	if len(named) > 0 {
		s[category] = named
	}
}

func (s ruleSet) addPath(p pattern.StringPattern) {
	if matchers := pattern.ToStringMatchRule(p).Rules["$"]; len(matchers) > 0 {
		s["path"] = matcherList{Matchers: matchers, Combine: "AND"}
	}
}

func (s ruleSet) orNil() ruleSet {
	if len(s) == 0 {
		return nil
	}
	return s
}

type generatorRef struct {
	Type       string `json:"type"`
	Expression string `json:"expression"`
}

func renderGenerators(gens []Generator) map[string]any {
	if len(gens) == 0 {
		return nil
	}
	out := map[string]any{}
	headers := map[string]generatorRef{}
	for _, g := range gens {
		ref := generatorRef{Type: "ProviderState", Expression: g.Expression}
		switch g.Category {
		case "header":
			headers[g.Key] = ref
		default:
			out[g.Category] = ref
		}
	}
	if len(headers) > 0 {
		out["header"] = headers
	}
	return out
}

func examples(values map[string][]pattern.StringPattern) map[string][]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string][]string, len(values))
	for k, patterns := range values {
		for _, p := range patterns {
			out[k] = append(out[k], p.Example())
		}
	}
	return out
}

func joinedExamples(values map[string][]pattern.StringPattern) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range examples(values) {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

// QueryString renders the query examples, sorted by name.
func (r Request) QueryString() string {
	names := make([]string, 0, len(r.Query))
	for k := range r.Query {
		names = append(names, k)
	}
	sort.Strings(names)
	var parts []string
	for _, k := range names {
		for _, p := range r.Query[k] {
			parts = append(parts, k+"="+p.Example())
		}
	}
	return strings.Join(parts, "&")
}

type v3Request struct {
	Method        string              `json:"method"`
	Path          string              `json:"path"`
	Query         map[string][]string `json:"query,omitempty"`
	Headers       map[string]string   `json:"headers,omitempty"`
	Body          any                 `json:"body,omitempty"`
	MatchingRules ruleSet             `json:"matchingRules,omitempty"`
	Generators    map[string]any      `json:"generators,omitempty"`
}

func (r Request) v3() v3Request {
	rules := ruleSet{}
	if r.Path != nil {
		rules.addPath(r.Path)
	}
	rules.addNamed("query", r.Query)
	rules.addNamed("header", r.Headers)
	rules.addBody(r.Body.Rules)
	path := ""
	if r.Path != nil {
		path = r.Path.Example()
	}
	return v3Request{
		Method:        r.Method,
		Path:          path,
		Query:         examples(r.Query),
		Headers:       joinedExamples(r.Headers),
		Body:          r.Body.v3(),
		MatchingRules: rules.orNil(),
		Generators:    renderGenerators(r.Generators),
	}
}

type v4Request struct {
	Method        string              `json:"method"`
	Path          string              `json:"path"`
	Query         map[string][]string `json:"query,omitempty"`
	Headers       map[string][]string `json:"headers,omitempty"`
	Body          *v4Body             `json:"body,omitempty"`
	MatchingRules ruleSet             `json:"matchingRules,omitempty"`
	Generators    map[string]any      `json:"generators,omitempty"`
}

func (r Request) v4() v4Request {
	v3 := r.v3()
	return v4Request{
		Method:        v3.Method,
		Path:          v3.Path,
		Query:         v3.Query,
		Headers:       examples(r.Headers),
		Body:          r.Body.v4(),
		MatchingRules: v3.MatchingRules,
		Generators:    v3.Generators,
	}
}

type v3Response struct {
	Status        int               `json:"status"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          any               `json:"body,omitempty"`
	MatchingRules ruleSet           `json:"matchingRules,omitempty"`
	Generators    map[string]any    `json:"generators,omitempty"`
}

func (r Response) rules() ruleSet {
	rules := ruleSet{}
	rules.addNamed("header", r.Headers)
	rules.addBody(r.Body.Rules)
	return rules.orNil()
}

func (r Response) v3() v3Response {
	return v3Response{
		Status:        r.Status,
		Headers:       joinedExamples(r.Headers),
		Body:          r.Body.v3(),
		MatchingRules: r.rules(),
		Generators:    renderGenerators(r.Generators),
	}
}

type v4Response struct {
	Status        int                 `json:"status"`
	Headers       map[string][]string `json:"headers,omitempty"`
	Body          *v4Body             `json:"body,omitempty"`
	MatchingRules ruleSet             `json:"matchingRules,omitempty"`
	Generators    map[string]any      `json:"generators,omitempty"`
}

func (r Response) v4() v4Response {
	return v4Response{
		Status:        r.Status,
		Headers:       examples(r.Headers),
		Body:          r.Body.v4(),
		MatchingRules: r.rules(),
		Generators:    renderGenerators(r.Generators),
	}
}
