package mockserver

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintCheck(t *testing.T) {
	for _, tt := range []struct {
		name       string
		constraint Constraint
		expected   []any
		actual     any
		ok         bool
	}{
		{name: "equal value", constraint: Constraint{Path: "$.body.name", Format: "%v"}, expected: []any{"sam"}, actual: "sam", ok: true},
		{name: "different value", constraint: Constraint{Path: "$.body.name", Format: "%v"}, expected: []any{"sam"}, actual: "bob"},
		{name: "formatted", constraint: Constraint{Path: "$.path", Format: "/users/%s/%v"}, expected: []any{"a", 1}, actual: "/users/a/1", ok: true},
		{name: "length", constraint: Constraint{Path: "$.body.items", Format: fmtLen}, expected: []any{2}, actual: []any{1, 2}, ok: true},
		{name: "length from json", constraint: Constraint{Path: "$.body.items", Format: fmtLen}, expected: []any{float64(1)}, actual: []any{1}, ok: true},
		{name: "wrong length", constraint: Constraint{Path: "$.body.items", Format: fmtLen}, expected: []any{3}, actual: []any{1}},
		{name: "length of non array", constraint: Constraint{Path: "$.body.items", Format: fmtLen}, expected: []any{1}, actual: "x"},
		{name: "negative length", constraint: Constraint{Path: "$.body.items", Format: fmtLen}, expected: []any{-1}, actual: []any{}},
		{name: "two lengths", constraint: Constraint{Path: "$.body.items", Format: fmtLen}, expected: []any{1, 2}, actual: []any{1}},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constraint.check(tt.expected, tt.actual)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadConstraint(t *testing.T) {
	c, err := loadConstraint([]byte(`{"interaction":"a","path":"$.body.name","values":["sam"]}`))
	require.NoError(t, err)
	assert.Equal(t, "%v", c.Format)
	assert.Equal(t, "a_$.body.name", c.key())

	_, err = loadConstraint([]byte(`{"interaction":"a"}`))
	assert.Error(t, err)
	_, err = loadConstraint([]byte(`{`))
	assert.Error(t, err)
}

func TestLoadModifier(t *testing.T) {
	m, err := loadModifier([]byte(`{"interaction":"a","path":"$.status","value":"418","attempt":2}`))
	require.NoError(t, err)

	ok, code := m.modifyStatusCode(1)
	assert.False(t, ok)
	ok, code = m.modifyStatusCode(2)
	assert.True(t, ok)
	assert.Equal(t, 418, code)

	_, err = loadModifier([]byte(`{"interaction":"a","path":"$.headers.x"}`))
	assert.Error(t, err)
}

func TestModifyBody(t *testing.T) {
	m := Modifier{Path: "$.body.user.name", Value: "jane"}

	out, err := m.modifyBody([]byte(`{"user":{"name":"any"},"id":1}`), 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"name":"jane"},"id":1}`, string(out))

	ok, _ := m.modifyStatusCode(1)
	assert.False(t, ok)
}

func TestEscapeQueryValues(t *testing.T) {
	u, err := url.Parse("/users?filter[name]=sam&filter[address][city]=london&page=2&broken[x=1")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"filter": map[string]any{
			"name":    "sam",
			"address": map[string]any{"city": "london"},
		},
		"page":     "2",
		"broken[x": "1",
	}, parseQueryValues(u))
}

func TestEncodeValuesQuotesQueryKeys(t *testing.T) {
	doc := requestDocument{"query": map[string]any{"filter": map[string]any{"name": "sam"}}}

	assert.Equal(t, `$.query["filter"]["name"]`, doc.encodeValues(`$.query[filter][name]`))
}
