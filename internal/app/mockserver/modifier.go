package mockserver

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

const (
	modifierStatusPath = "$.status"
	modifierBodyPrefix = "$.body."
)

// Modifier rewrites the replayed response of an interaction: "$.status"
// replaces the status code, "$.body.<path>" sets a member of a JSON body.
// With an Attempt, only that request (1-based) is modified.
type Modifier struct {
	Interaction string `json:"interaction"`
	Path        string `json:"path"`
	Value       any    `json:"value"`
	Attempt     *int   `json:"attempt,omitempty"`
}

func loadModifier(data []byte) (Modifier, error) {
	var m Modifier
	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.Wrap(err, "unable to parse modifier from data")
	}
	if m.Path != modifierStatusPath && !strings.HasPrefix(m.Path, modifierBodyPrefix) {
		return m, fmt.Errorf("invalid path: %s", m.Path)
	}
	return m, nil
}

func (m Modifier) key() string {
	return strings.Join([]string{m.Interaction, m.Path}, "_")
}

func (m Modifier) appliesTo(attempt int) bool {
	return m.Attempt == nil || *m.Attempt == attempt
}

func (m Modifier) modifyBody(b []byte, attempt int) ([]byte, error) {
	if !strings.HasPrefix(m.Path, modifierBodyPrefix) || !m.appliesTo(attempt) {
		return b, nil
	}
	return sjson.SetBytes(b, m.Path[len(modifierBodyPrefix):], m.Value)
}

func (m Modifier) modifyStatusCode(attempt int) (bool, int) {
	if m.Path != modifierStatusPath || !m.appliesTo(attempt) {
		return false, 0
	}
	code, err := strconv.Atoi(fmt.Sprint(m.Value))
	if err != nil {
		return false, 0
	}
	return true, code
}
