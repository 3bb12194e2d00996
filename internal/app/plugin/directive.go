package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/pkg/errors"
)

// Matcher directives may appear as string leaves of a contents definition.
// Quoted arguments follow expr string syntax, so regex backslashes are
// doubled or written in a backtick string:
//
//	matching(regex, `\d+`, '12')
//	matching(type, 'Mary')
//	matching(datetime, 'yyyy-MM-dd', '2024-01-31')
//	matching(equalTo, 10)
//	eachLike(matching(type, 'sku'), 2)
//
// Any other string is a literal.
var directiveEnv = map[string]any{
	"regex":    pattern.MatchRegex,
	"type":     pattern.MatchType,
	"datetime": pattern.MatchDateTime,
	"equalTo":  "equalTo",
}

func isDirective(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "matching(") || strings.HasPrefix(s, "eachLike(")
}

// ParseDefinition converts a contents definition into a JSON pattern,
// expanding matcher directives.
func ParseDefinition(definition map[string]any) (pattern.JSONPattern, error) {
	return parseValue("$", definition)
}

func parseValue(at string, v any) (pattern.JSONPattern, error) {
	switch t := v.(type) {
	case string:
		if !isDirective(t) {
			return pattern.String(t), nil
		}
		p, err := ParseDirective(t)
		if err != nil {
			return nil, errors.Wrapf(err, "at %s", at)
		}
		return p, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make(map[string]pattern.JSONPattern, len(t))
		for _, k := range keys {
			p, err := parseValue(at+"."+k, t[k])
			if err != nil {
				return nil, err
			}
			fields[k] = p
		}
		return pattern.Object(fields), nil
	case []any:
		items := make([]pattern.JSONPattern, len(t))
		for i, item := range t {
			p, err := parseValue(fmt.Sprintf("%s[%d]", at, i), item)
			if err != nil {
				return nil, err
			}
			items[i] = p
		}
		return pattern.Array(items...), nil
	}
	p, err := pattern.FromValue(v)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidDefinition, "at %s: %s", at, err)
	}
	return p, nil
}

// ParseDirective evaluates a single matcher directive. Only matching,
// eachLike and the matcher kinds are in scope.
func ParseDirective(src string) (pattern.JSONPattern, error) {
	program, err := expr.Compile(src,
		expr.Env(directiveEnv),
		expr.DisableAllBuiltins(),
		expr.Function("matching", matching),
		expr.Function("eachLike", eachLike),
	)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidDefinition, "directive %q: %s", src, err)
	}
	out, err := expr.Run(program, directiveEnv)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidDefinition, "directive %q: %s", src, err)
	}
	p, ok := out.(pattern.JSONPattern)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidDefinition, "directive %q does not produce a matcher", src)
	}
	return p, nil
}

func matching(params ...any) (any, error) {
	if len(params) < 2 {
		return nil, errors.New("matching needs a kind and a value")
	}
	kind, _ := params[0].(string)
	switch kind {
	case pattern.MatchRegex:
		regex, example, err := twoStrings(kind, params[1:])
		if err != nil {
			return nil, err
		}
		return pattern.MatchingRegex(regex, example)
	case pattern.MatchDateTime:
		format, example, err := twoStrings(kind, params[1:])
		if err != nil {
			return nil, err
		}
		return pattern.DateTime(format, example), nil
	case pattern.MatchType:
		inner, err := pattern.FromValue(params[1])
		if err != nil {
			return nil, err
		}
		return pattern.Like(inner), nil
	case "equalTo":
		return pattern.FromValue(params[1])
	}
	return nil, errors.Errorf("unknown matcher kind %v", params[0])
}

func eachLike(params ...any) (any, error) {
	if len(params) < 1 || len(params) > 2 {
		return nil, errors.New("eachLike needs a value and an optional minimum")
	}
	inner, err := pattern.FromValue(params[0])
	if err != nil {
		return nil, err
	}
	minLen := 1
	if len(params) == 2 {
		n, ok := params[1].(int)
		if !ok {
			return nil, errors.Errorf("eachLike minimum must be an integer, got %v", params[1])
		}
		minLen = n
	}
	return pattern.EachLike(inner, minLen), nil
}

func twoStrings(kind string, params []any) (string, string, error) {
	if len(params) != 2 {
		return "", "", errors.Errorf("matching(%s) needs two string arguments", kind)
	}
	a, ok1 := params[0].(string)
	b, ok2 := params[1].(string)
	if !ok1 || !ok2 {
		return "", "", errors.Errorf("matching(%s) needs two string arguments", kind)
	}
	return a, b, nil
}
