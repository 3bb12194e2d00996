package pattern

import (
	"regexp"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Matcher names, in the vocabulary of Pact matching rules.
const (
	MatchType     = "type"
	MatchRegex    = "regex"
	MatchDateTime = "datetime"
	MatchEquality = "equality"
)

// Rule is a single matching rule.
type Rule struct {
	Match  string `json:"match"`
	Regex  string `json:"regex,omitempty"`
	Format string `json:"format,omitempty"`
	Min    *int   `json:"min,omitempty"`
}

// Rules maps a rendered Path to the rules that apply there. All rules at a
// path must hold.
type Rules map[string][]Rule

// Add records rule at p.
func (r Rules) Add(p Path, rule Rule) {
	k := p.String()
	r[k] = append(r[k], rule)
}

// Paths returns the rule paths in a stable order.
func (r Rules) Paths() []string {
	paths := make([]string, 0, len(r))
	for k := range r {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a copy that shares no slices with r.
func (r Rules) Clone() Rules {
	if r == nil {
		return nil
	}
	out := make(Rules, len(r))
	for k, v := range r {
		out[k] = append([]Rule(nil), v...)
	}
	return out
}

// Merge adds every rule of other to r.
func (r Rules) Merge(other Rules) {
	for k, v := range other {
		r[k] = append(r[k], v...)
	}
}

const regexCacheSize = 512

var regexCache = mustRegexCache()

func mustRegexCache() *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](regexCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

func compileRegex(expr string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Get(expr); ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	regexCache.Add(expr, re)
	return re, nil
}
