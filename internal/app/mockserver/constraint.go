package mockserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// fmtLen turns a constraint into a length check on the array at Path.
const fmtLen = "_length_"

// Constraint narrows an interaction beyond its contract: the value at Path
// in the request document must render as Format applied to Values. With a
// Source, Values are JSONPath expressions evaluated against the last request
// of the source interaction.
type Constraint struct {
	Interaction string `json:"interaction"`
	Path        string `json:"path"`
	Values      []any  `json:"values"`
	Format      string `json:"format"`
	Source      string `json:"source,omitempty"`
}

func loadConstraint(data []byte) (Constraint, error) {
	var c Constraint
	if err := json.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, "unable to parse constraint from data")
	}
	if c.Path == "" {
		return c, errors.New("constraint has no path")
	}
	if c.Format == "" {
		c.Format = "%v"
	}
	return c, nil
}

func (c Constraint) key() string {
	return strings.Join([]string{c.Interaction, c.Path}, "_")
}

func (c Constraint) check(expectedValues []any, actualValue any) error {
	if c.Format == fmtLen {
		if len(expectedValues) != 1 {
			return fmt.Errorf(
				"expected single positive integer value for path %q length constraint, but there are %v expected values",
				c.Path, len(expectedValues))
		}
		expected, ok := asLength(expectedValues[0])
		if !ok {
			return fmt.Errorf("expected value for %q length constraint must be a positive integer", c.Path)
		}

		actualSlice, ok := actualValue.([]any)
		if !ok {
			return fmt.Errorf("value at path %q must be an array due to length constraint", c.Path)
		}
		if expected != len(actualSlice) {
			return fmt.Errorf("value of length %v at path %q does not match length constraint %v",
				len(actualSlice), c.Path, expected)
		}
		return nil
	}

	expected := fmt.Sprintf(c.Format, expectedValues...)
	actual := fmt.Sprintf("%v", actualValue)
	if expected != actual {
		return fmt.Errorf("value %q at path %q does not match constraint %q", actual, c.Path, expected)
	}
	return nil
}

// asLength accepts the integer forms a length can take after a JSON round trip.
func asLength(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n >= 0
	case float64:
		if n < 0 || n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
