// Package pattern models contract values that are either a literal example
// or a matching rule, for JSON documents and for string fields such as
// headers, paths and query parameters.
//
// Patterns are immutable once constructed and may be shared freely. They are
// turned into a concrete example plus a set of rules with ToMatchRule, and the
// rules are evaluated against actual values with MatchRule.Match or Compare.
package pattern

import (
	"regexp"

	"github.com/pkg/errors"
)

// JSONPattern is a JSON value that is either literal (matching and
// generating itself) or a matcher.
type JSONPattern interface {
	// Example returns a freshly built concrete value for the pattern.
	Example() any
	extract(p Path, rules Rules)
}

// StringPattern is the scalar counterpart of JSONPattern used for headers,
// paths, query parameters and plain-text bodies.
type StringPattern interface {
	Example() string
	extract(p Path, rules Rules)
}

type literal struct {
	value any
}

func (l literal) Example() any            { return l.value }
func (l literal) extract(_ Path, _ Rules) {}

// String is a literal JSON string.
func String(s string) JSONPattern { return literal{value: s} }

// Number is a literal JSON number.
func Number(n float64) JSONPattern { return literal{value: n} }

// Bool is a literal JSON boolean.
func Bool(b bool) JSONPattern { return literal{value: b} }

// Null is the literal JSON null.
func Null() JSONPattern { return literal{value: nil} }

type array []JSONPattern

func (a array) Example() any {
	out := make([]any, len(a))
	for i, item := range a {
		out[i] = item.Example()
	}
	return out
}

func (a array) extract(p Path, rules Rules) {
	for i, item := range a {
		item.extract(p.Index(i), rules)
	}
}

// Array is a literal JSON array whose elements are themselves patterns.
func Array(items ...JSONPattern) JSONPattern {
	out := make(array, len(items))
	for i, item := range items {
		out[i] = orNull(item)
	}
	return out
}

type object map[string]JSONPattern

func (o object) Example() any {
	out := make(map[string]any, len(o))
	for k, v := range o {
		out[k] = v.Example()
	}
	return out
}

func (o object) extract(p Path, rules Rules) {
	for k, v := range o {
		v.extract(p.Field(k), rules)
	}
}

// Object is a literal JSON object whose values are themselves patterns.
func Object(fields map[string]JSONPattern) JSONPattern {
	out := make(object, len(fields))
	for k, v := range fields {
		out[k] = orNull(v)
	}
	return out
}

type regexMatcher struct {
	re      *regexp.Regexp
	example string
}

func (m regexMatcher) Example() any { return m.example }

func (m regexMatcher) extract(p Path, rules Rules) {
	rules.Add(p, Rule{Match: MatchRegex, Regex: m.re.String()})
}

// MatchingRegex matches any scalar whose text form matches regex. The
// example is the value generated for the contract.
func MatchingRegex(regex, example string) (JSONPattern, error) {
	re, err := compileRegex(regex)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPattern, "regex %q: %s", regex, err)
	}
	return regexMatcher{re: re, example: example}, nil
}

// MustMatchingRegex is like MatchingRegex but panics on an invalid regex.
func MustMatchingRegex(regex, example string) JSONPattern {
	p, err := MatchingRegex(regex, example)
	if err != nil {
		panic(err)
	}
	return p
}

type likeMatcher struct {
	inner JSONPattern
}

func (m likeMatcher) Example() any { return m.inner.Example() }

func (m likeMatcher) extract(p Path, rules Rules) {
	rules.Add(p, Rule{Match: MatchType})
	m.inner.extract(p, rules)
}

// Like matches any value with the same JSON type as inner's example.
func Like(inner JSONPattern) JSONPattern {
	return likeMatcher{inner: orNull(inner)}
}

type eachLikeMatcher struct {
	inner  JSONPattern
	minLen int
}

func (m eachLikeMatcher) Example() any {
	n := m.minLen
	if n < 1 {
		n = 1
	}
	out := make([]any, n)
	for i := range out {
		out[i] = m.inner.Example()
	}
	return out
}

func (m eachLikeMatcher) extract(p Path, rules Rules) {
	minLen := m.minLen
	rules.Add(p, Rule{Match: MatchType, Min: &minLen})
	m.inner.extract(p.Any(), rules)
}

// EachLike matches an array of at least minLen elements, each of which
// matches inner. A negative minLen is treated as zero.
func EachLike(inner JSONPattern, minLen int) JSONPattern {
	if minLen < 0 {
		minLen = 0
	}
	return eachLikeMatcher{inner: orNull(inner), minLen: minLen}
}

type dateTimeMatcher struct {
	format  string
	example string
}

func (m dateTimeMatcher) Example() any { return m.example }

func (m dateTimeMatcher) extract(p Path, rules Rules) {
	rules.Add(p, Rule{Match: MatchDateTime, Format: m.format})
}

// DateTime matches strings that parse with format. Both Pact style
// (yyyy-MM-dd'T'HH:mm:ss) and Go reference layouts are accepted.
func DateTime(format, example string) JSONPattern {
	return dateTimeMatcher{format: format, example: example}
}

func orNull(p JSONPattern) JSONPattern {
	if p == nil {
		return Null()
	}
	return p
}

type stringLiteral string

func (s stringLiteral) Example() string         { return string(s) }
func (s stringLiteral) extract(_ Path, _ Rules) {}

// StringLiteral matches and generates exactly s.
func StringLiteral(s string) StringPattern { return stringLiteral(s) }

type stringRegex struct {
	re      *regexp.Regexp
	example string
}

func (m stringRegex) Example() string { return m.example }

func (m stringRegex) extract(p Path, rules Rules) {
	rules.Add(p, Rule{Match: MatchRegex, Regex: m.re.String()})
}

// StringRegex matches strings matching regex.
func StringRegex(regex, example string) (StringPattern, error) {
	re, err := compileRegex(regex)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPattern, "regex %q: %s", regex, err)
	}
	return stringRegex{re: re, example: example}, nil
}

// MustStringRegex is like StringRegex but panics on an invalid regex.
func MustStringRegex(regex, example string) StringPattern {
	p, err := StringRegex(regex, example)
	if err != nil {
		panic(err)
	}
	return p
}

type stringLike struct {
	inner StringPattern
}

func (m stringLike) Example() string { return m.inner.Example() }

func (m stringLike) extract(p Path, rules Rules) {
	rules.Add(p, Rule{Match: MatchType})
	m.inner.extract(p, rules)
}

// StringLike matches any string.
func StringLike(inner StringPattern) StringPattern {
	if inner == nil {
		inner = stringLiteral("")
	}
	return stringLike{inner: inner}
}

type stringDateTime struct {
	format  string
	example string
}

func (m stringDateTime) Example() string { return m.example }

func (m stringDateTime) extract(p Path, rules Rules) {
	rules.Add(p, Rule{Match: MatchDateTime, Format: m.format})
}

// StringDateTime matches strings that parse with format.
func StringDateTime(format, example string) StringPattern {
	return stringDateTime{format: format, example: example}
}

// MatchRule is a pattern resolved into a concrete example and the rules
// that decide whether an actual value conforms to it.
type MatchRule struct {
	Example any
	Rules   Rules
}

// ToMatchRule resolves a JSON pattern.
func ToMatchRule(p JSONPattern) MatchRule {
	p = orNull(p)
	rules := Rules{}
	p.extract(Root, rules)
	return MatchRule{Example: p.Example(), Rules: rules}
}

// ToStringMatchRule resolves a string pattern. The rules are rooted at "$".
func ToStringMatchRule(p StringPattern) MatchRule {
	if p == nil {
		p = stringLiteral("")
	}
	rules := Rules{}
	p.extract(Root, rules)
	return MatchRule{Example: p.Example(), Rules: rules}
}

// Match evaluates actual against the rule. An empty result means accepted.
func (m MatchRule) Match(actual any) []Mismatch {
	return Compare(m.Example, actual, m.Rules, Options{})
}

// Matches reports whether actual is accepted.
func (m MatchRule) Matches(actual any) bool {
	return len(m.Match(actual)) == 0
}

// SelfCheck evaluates the rule against its own example. Constructors do not
// enforce that examples satisfy their rules, so a non-empty result points at
// a latent contract bug.
func (m MatchRule) SelfCheck() []Mismatch {
	return m.Match(m.Example)
}
