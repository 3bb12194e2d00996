package pattern

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareUnexpectedKeys(t *testing.T) {
	expected := map[string]any{"a": 1}
	actual := map[string]any{"a": 1, "extra": "x"}

	mismatches := Compare(expected, actual, nil, Options{})
	require.Len(t, mismatches, 1)
	assert.Equal(t, "$.extra", mismatches[0].Path)
	assert.Contains(t, mismatches[0].Message, "unexpected key")

	assert.Empty(t, Compare(expected, actual, nil, Options{AllowUnexpectedKeys: true}))
}

func TestCompareReportsEveryMismatch(t *testing.T) {
	expected := map[string]any{"a": 1, "b": "x", "c": true}
	actual := map[string]any{"a": 2, "b": "y"}

	mismatches := Compare(expected, actual, nil, Options{})
	paths := make([]string, 0, len(mismatches))
	for _, m := range mismatches {
		paths = append(paths, m.Path)
	}
	assert.Equal(t, []string{"$.a", "$.b", "$.c"}, paths)
}

func TestCompareNormalizesNumbers(t *testing.T) {
	expected := map[string]any{"n": 1, "m": []int{1, 2}}
	actual := map[string]any{"n": json.Number("1"), "m": []any{int64(1), float32(2)}}

	assert.Empty(t, Compare(expected, actual, nil, Options{}))
}

func TestCompareMostSpecificRuleWins(t *testing.T) {
	rules := Rules{}
	rules.Add(Root.Field("items").Any(), Rule{Match: MatchType})
	rules.Add(Root.Field("items").Index(0), Rule{Match: MatchEquality})

	expected := map[string]any{"items": []any{"first", "other"}}

	assert.Empty(t, Compare(expected, map[string]any{"items": []any{"first", "x"}}, rules, Options{}))
	assert.NotEmpty(t, Compare(expected, map[string]any{"items": []any{"changed", "x"}}, rules, Options{}))
}

func TestCompareIgnoresMalformedRulePaths(t *testing.T) {
	rules := Rules{"not a path": {{Match: MatchType}}}

	assert.Empty(t, Compare("a", "a", rules, Options{}))
	assert.NotEmpty(t, Compare("a", "b", rules, Options{}))
}

func TestCompareUnknownMatcher(t *testing.T) {
	rules := Rules{"$": {{Match: "include"}}}

	mismatches := Compare("a", "a", rules, Options{})
	require.Len(t, mismatches, 1)
	assert.Contains(t, mismatches[0].Message, `unknown matcher "include"`)
}

func TestCompareTypeRuleOnArrayUsesTemplate(t *testing.T) {
	rules := Rules{"$": {{Match: MatchType}}}

	assert.Empty(t, Compare([]any{"a"}, []any{"x", "y", "z"}, rules, Options{}))
	assert.Empty(t, Compare([]any{"a"}, []any{}, rules, Options{}))
	assert.NotEmpty(t, Compare([]any{"a"}, []any{"x", 1}, rules, Options{}))
	assert.NotEmpty(t, Compare([]any{"a"}, map[string]any{}, rules, Options{}))
}

func TestCompareArrayLengthWithoutRule(t *testing.T) {
	mismatches := Compare([]any{1, 2}, []any{1}, nil, Options{})
	require.Len(t, mismatches, 1)
	assert.Equal(t, "$", mismatches[0].Path)
}

func TestMismatchString(t *testing.T) {
	m := Mismatch{Path: "$.qty", Message: "expected a value of type number but got string"}
	assert.Equal(t, "$.qty: expected a value of type number but got string", m.String())
}

func TestRulesCloneAndMerge(t *testing.T) {
	minLen := 2
	r := Rules{}
	r.Add(Root, Rule{Match: MatchType, Min: &minLen})

	clone := r.Clone()
	clone.Add(Root, Rule{Match: MatchRegex, Regex: "x"})
	assert.Len(t, r["$"], 1)
	assert.Len(t, clone["$"], 2)

	other := Rules{"$.a": {{Match: MatchType}}}
	r.Merge(other)
	assert.Equal(t, []string{"$", "$.a"}, r.Paths())

	assert.Nil(t, Rules(nil).Clone())
}

func TestNormalize(t *testing.T) {
	got := Normalize(map[any]any{
		"a": uint8(1),
		2:   []string{"x"},
		"m": map[string]string{"k": "v"},
	})
	assert.Equal(t, map[string]any{
		"a": float64(1),
		"2": []any{"x"},
		"m": map[string]any{"k": "v"},
	}, got)
}
