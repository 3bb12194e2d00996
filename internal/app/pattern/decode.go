package pattern

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// MatcherKey marks an object in the tagged JSON form as a matcher rather
// than a literal object:
//
//	{"$match": "regex", "regex": "\\d+", "example": "42"}
//	{"$match": "like", "value": 1}
//	{"$match": "eachLike", "value": {"id": 1}, "min": 2}
//	{"$match": "datetime", "format": "yyyy-MM-dd", "example": "2024-01-31"}
const MatcherKey = "$match"

// FromValue converts a plain Go value into a literal JSON pattern. Maps,
// slices and scalars are accepted; JSONPattern values may appear anywhere
// inside and are kept as they are. Map keys must be text.
func FromValue(v any) (JSONPattern, error) {
	return fromValue(Root, v, false)
}

// FromTagged is like FromValue but interprets objects carrying MatcherKey
// as matchers.
func FromTagged(v any) (JSONPattern, error) {
	return fromValue(Root, v, true)
}

// DecodeJSON decodes the tagged JSON form into a pattern.
func DecodeJSON(data []byte) (JSONPattern, error) {
	var v any
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, errors.Wrapf(ErrInvalidPattern, "decode json pattern: %s", err)
	}
	return FromTagged(v)
}

// DecodeString decodes a JSON string or a tagged string matcher.
func DecodeString(data []byte) (StringPattern, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrapf(ErrInvalidPattern, "decode string pattern: %s", err)
	}
	return StringFromTagged(v)
}

func fromValue(p Path, v any, tagged bool) (JSONPattern, error) {
	switch t := v.(type) {
	case JSONPattern:
		return t, nil
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPattern, "%s: number %q", p, t)
		}
		return Number(f), nil
	case []any:
		items := make(array, len(t))
		for i, item := range t {
			pat, err := fromValue(p.Index(i), item, tagged)
			if err != nil {
				return nil, err
			}
			items[i] = pat
		}
		return items, nil
	case map[string]any:
		if tagged {
			if _, ok := t[MatcherKey]; ok {
				return matcherFromTagged(p, t)
			}
		}
		fields := make(object, len(t))
		for k, item := range t {
			pat, err := fromValue(p.Field(k), item, tagged)
			if err != nil {
				return nil, err
			}
			fields[k] = pat
		}
		return fields, nil
	}

	if n, ok := Normalize(v).(float64); ok {
		return Number(n), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return fromValue(p, items, tagged)
	case reflect.Map:
		fields := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidKey, "%s: key %v of type %T is not text", p, iter.Key().Interface(), iter.Key().Interface())
			}
			fields[key] = iter.Value().Interface()
		}
		return fromValue(p, fields, tagged)
	case reflect.Ptr:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromValue(p, rv.Elem().Interface(), tagged)
	}
	return nil, errors.Wrapf(ErrInvalidPattern, "%s: unsupported value of type %T", p, v)
}

func matcherFromTagged(p Path, m map[string]any) (JSONPattern, error) {
	kind, _ := m[MatcherKey].(string)
	switch kind {
	case "regex":
		regex, example, err := regexFields(p, m)
		if err != nil {
			return nil, err
		}
		return MatchingRegex(regex, example)
	case "like", "type":
		inner, err := fromValue(p, m["value"], true)
		if err != nil {
			return nil, err
		}
		return Like(inner), nil
	case "eachLike":
		inner, err := fromValue(p.Any(), m["value"], true)
		if err != nil {
			return nil, err
		}
		minLen := 0
		if raw, ok := m["min"]; ok {
			n, isNumber := Normalize(raw).(float64)
			if !isNumber || n < 0 || n != float64(int(n)) {
				return nil, errors.Wrapf(ErrInvalidPattern, "%s: eachLike min must be a non-negative integer, got %v", p, raw)
			}
			minLen = int(n)
		}
		return EachLike(inner, minLen), nil
	case "datetime":
		format, example, err := dateTimeFields(p, m)
		if err != nil {
			return nil, err
		}
		return DateTime(format, example), nil
	}
	return nil, errors.Wrapf(ErrInvalidPattern, "%s: unknown matcher %q", p, fmt.Sprint(m[MatcherKey]))
}

// StringFromTagged converts a string or a tagged string matcher.
func StringFromTagged(v any) (StringPattern, error) {
	switch t := v.(type) {
	case StringPattern:
		return t, nil
	case string:
		return StringLiteral(t), nil
	case map[string]any:
		kind, _ := t[MatcherKey].(string)
		switch kind {
		case "regex":
			regex, example, err := regexFields(Root, t)
			if err != nil {
				return nil, err
			}
			return StringRegex(regex, example)
		case "like", "type":
			inner, err := StringFromTagged(t["value"])
			if err != nil {
				return nil, err
			}
			return StringLike(inner), nil
		case "datetime":
			format, example, err := dateTimeFields(Root, t)
			if err != nil {
				return nil, err
			}
			return StringDateTime(format, example), nil
		}
		return nil, errors.Wrapf(ErrInvalidPattern, "unknown string matcher %q", fmt.Sprint(t[MatcherKey]))
	}
	return nil, errors.Wrapf(ErrInvalidPattern, "string pattern must be a string or a matcher, got %T", v)
}

func regexFields(p Path, m map[string]any) (string, string, error) {
	regex, ok := m["regex"].(string)
	if !ok {
		return "", "", errors.Wrapf(ErrInvalidPattern, "%s: regex matcher needs a regex", p)
	}
	example, ok := m["example"].(string)
	if !ok {
		return "", "", errors.Wrapf(ErrInvalidPattern, "%s: regex matcher needs a string example", p)
	}
	return regex, example, nil
}

func dateTimeFields(p Path, m map[string]any) (string, string, error) {
	format, ok := m["format"].(string)
	if !ok || format == "" {
		return "", "", errors.Wrapf(ErrInvalidPattern, "%s: datetime matcher needs a format", p)
	}
	example, ok := m["example"].(string)
	if !ok {
		return "", "", errors.Wrapf(ErrInvalidPattern, "%s: datetime matcher needs a string example", p)
	}
	return format, example, nil
}
