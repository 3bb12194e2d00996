package pattern

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Options tune Compare.
type Options struct {
	// AllowUnexpectedKeys accepts object members absent from the expectation.
	// Responses and messages allow them, requests do not.
	AllowUnexpectedKeys bool
}

// Mismatch describes one place where an actual value breaks the contract.
type Mismatch struct {
	Path     string `json:"path"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Message  string `json:"message"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s", m.Path, m.Message)
}

type ruleEntry struct {
	path  Path
	rules []Rule
}

type comparison struct {
	entries    []ruleEntry
	opts       Options
	mismatches []Mismatch
}

// Compare evaluates actual against the expected example under rules.
// Numbers of any Go numeric type are compared as float64.
func Compare(expected, actual any, rules Rules, opts Options) []Mismatch {
	c := &comparison{opts: opts}
	for _, k := range rules.Paths() {
		p, err := ParsePath(k)
		if err != nil {
			log.Warnf("ignoring matching rules at %q: %s", k, err)
			continue
		}
		c.entries = append(c.entries, ruleEntry{path: p, rules: rules[k]})
	}
	c.compare(Root, Normalize(expected), Normalize(actual), false)
	return c.mismatches
}

func (c *comparison) fail(p Path, expected, actual any, format string, args ...any) {
	c.mismatches = append(c.mismatches, Mismatch{
		Path:     p.String(),
		Expected: expected,
		Actual:   actual,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *comparison) lookup(p Path) []Rule {
	best := -1
	var rules []Rule
	for _, e := range c.entries {
		if w, ok := e.path.weight(p); ok && w > best {
			best, rules = w, e.rules
		}
	}
	return rules
}

func (c *comparison) compare(p Path, expected, actual any, typed bool) {
	if rules := c.lookup(p); len(rules) > 0 {
		for _, r := range rules {
			if !c.apply(p, r, expected, actual) {
				return
			}
			if r.Match == MatchType {
				typed = true
			}
		}
		c.descend(p, expected, actual, typed)
		return
	}

	if typed {
		if kindOf(expected) != kindOf(actual) {
			c.fail(p, expected, actual, "expected a value of type %s but got %s", kindOf(expected), kindOf(actual))
			return
		}
		c.descend(p, expected, actual, true)
		return
	}

	switch expected.(type) {
	case map[string]any, []any:
		c.descend(p, expected, actual, false)
	default:
		if !reflect.DeepEqual(expected, actual) {
			c.fail(p, expected, actual, "expected %s but got %s", describe(expected), describe(actual))
		}
	}
}

func (c *comparison) descend(p Path, expected, actual any, typed bool) {
	switch e := expected.(type) {
	case map[string]any:
		c.compareObject(p, e, actual, typed)
	case []any:
		c.compareArray(p, e, actual, typed)
	}
}

func (c *comparison) compareObject(p Path, expected map[string]any, actualValue any, typed bool) {
	actual, ok := actualValue.(map[string]any)
	if !ok {
		c.fail(p, expected, actualValue, "expected an object but got %s", kindOf(actualValue))
		return
	}
	for _, k := range sortedKeys(expected) {
		a, present := actual[k]
		if !present {
			c.fail(p.Field(k), expected[k], nil, "expected key %q is missing", k)
			continue
		}
		c.compare(p.Field(k), expected[k], a, typed)
	}
	if c.opts.AllowUnexpectedKeys {
		return
	}
	for _, k := range sortedKeys(actual) {
		if _, known := expected[k]; !known {
			c.fail(p.Field(k), nil, actual[k], "unexpected key %q", k)
		}
	}
}

func (c *comparison) compareArray(p Path, expected []any, actualValue any, typed bool) {
	actual, ok := actualValue.([]any)
	if !ok {
		c.fail(p, expected, actualValue, "expected an array but got %s", kindOf(actualValue))
		return
	}
	if typed {
		if len(expected) == 0 {
			return
		}
		for i, a := range actual {
			e := expected[len(expected)-1]
			if i < len(expected) {
				e = expected[i]
			}
			c.compare(p.Index(i), e, a, true)
		}
		return
	}
	if len(actual) != len(expected) {
		c.fail(p, len(expected), len(actual), "expected an array of %d elements but got %d", len(expected), len(actual))
		return
	}
	for i := range expected {
		c.compare(p.Index(i), expected[i], actual[i], false)
	}
}

func (c *comparison) apply(p Path, r Rule, expected, actual any) bool {
	switch r.Match {
	case MatchType:
		if kindOf(expected) != kindOf(actual) {
			c.fail(p, expected, actual, "expected a value of type %s but got %s", kindOf(expected), kindOf(actual))
			return false
		}
		if r.Min != nil {
			if items, ok := actual.([]any); ok && len(items) < *r.Min {
				c.fail(p, *r.Min, len(items), "expected at least %d elements but got %d", *r.Min, len(items))
				return false
			}
		}
	case MatchRegex:
		text, ok := scalarText(actual)
		if !ok {
			c.fail(p, r.Regex, actual, "expected a scalar matching %q but got %s", r.Regex, kindOf(actual))
			return false
		}
		re, err := compileRegex(r.Regex)
		if err != nil {
			c.fail(p, r.Regex, actual, "invalid regex %q: %s", r.Regex, err)
			return false
		}
		if !re.MatchString(text) {
			c.fail(p, r.Regex, actual, "expected %q to match %q", text, r.Regex)
			return false
		}
	case MatchDateTime:
		text, ok := actual.(string)
		if !ok {
			c.fail(p, r.Format, actual, "expected a date/time string but got %s", kindOf(actual))
			return false
		}
		if _, err := time.Parse(GoLayout(r.Format), text); err != nil {
			c.fail(p, r.Format, actual, "expected %q to be a date/time in format %q", text, r.Format)
			return false
		}
	case MatchEquality:
		if !reflect.DeepEqual(expected, actual) {
			c.fail(p, expected, actual, "expected %s but got %s", describe(expected), describe(actual))
			return false
		}
	default:
		c.fail(p, r.Match, actual, "unknown matcher %q", r.Match)
		return false
	}
	return true
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func describe(v any) string {
	if text, ok := scalarText(v); ok {
		if _, isString := v.(string); isString {
			return strconv.Quote(text)
		}
		return text
	}
	return kindOf(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize converts Go values into the canonical JSON-like form used by
// Compare: float64 numbers, map[string]any objects and []any arrays.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}
