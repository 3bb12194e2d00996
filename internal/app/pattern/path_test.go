package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathString(t *testing.T) {
	tests := []struct {
		path Path
		want string
	}{
		{Root, "$"},
		{Root.Field("qty"), "$.qty"},
		{Root.Field("items").Any().Field("sku"), "$.items[*].sku"},
		{Root.Field("a b"), "$['a b']"},
		{Root.Field("it's"), `$['it\'s']`},
		{Root.Field(`a\b`), `$['a\\b']`},
		{Root.Field(`\'`), `$['\\\'']`},
		{Root.Field(""), "$['']"},
		{Root.Index(3).Index(0), "$[3][0]"},
		{Root.Field("Content-Type"), "$.Content-Type"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.path.String())

			parsed, err := ParsePath(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.want, parsed.String())
		})
	}
}

func TestQuotedKeyRoundTrip(t *testing.T) {
	for _, key := range []string{`a\b`, `trailing\`, `\'`, "plain key"} {
		parsed, err := ParsePath(Root.Field(key).String())
		require.NoError(t, err)
		assert.Equal(t, Root.Field(key).String(), parsed.String())

		w, ok := parsed.weight(Root.Field(key))
		assert.True(t, ok, key)
		assert.Positive(t, w)
	}
}

func TestRuleAtBackslashKeyApplies(t *testing.T) {
	rule := ToMatchRule(Object(map[string]JSONPattern{`a\b`: Like(Number(1))}))

	assert.Empty(t, rule.Match(map[string]any{`a\b`: 7.0}))
	assert.NotEmpty(t, rule.Match(map[string]any{`a\b`: "7"}))
}

func TestParsePathWildcardMember(t *testing.T) {
	p, err := ParsePath("$.*.id")
	require.NoError(t, err)
	assert.Equal(t, "$.*.id", p.String())

	w, ok := p.weight(Root.Field("anything").Field("id"))
	assert.True(t, ok)
	assert.Equal(t, 3, w)
}

func TestParsePathErrors(t *testing.T) {
	for _, s := range []string{"", "qty", "$.", "$[", "$[x]", "$[-1]", "$['open", "$!"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParsePath(s)
			assert.ErrorIs(t, err, ErrInvalidPattern)
		})
	}
}

func TestPathWeightPrefersExactSegments(t *testing.T) {
	actual := Root.Field("items").Index(2)

	exact, ok := Root.Field("items").Index(2).weight(actual)
	require.True(t, ok)
	wildcard, ok := Root.Field("items").Any().weight(actual)
	require.True(t, ok)
	assert.Greater(t, exact, wildcard)

	_, ok = Root.Field("items").weight(actual)
	assert.False(t, ok)
	_, ok = Root.Field("other").Any().weight(actual)
	assert.False(t, ok)
	_, ok = Root.Field("items").Index(1).weight(actual)
	assert.False(t, ok)
}

func TestPathWithDoesNotAlias(t *testing.T) {
	base := make(Path, 0, 4).Field("a")
	x := base.Field("x")
	y := base.Field("y")

	assert.Equal(t, "$.a.x", x.String())
	assert.Equal(t, "$.a.y", y.String())
}
