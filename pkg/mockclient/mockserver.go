package mockclient

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const controlPrefix = "/_pact"

// MockServer controls one running mock server.
type MockServer struct {
	ID     string
	URL    string
	admin  *AdminConfiguration
	client http.Client
}

type InteractionSetup struct {
	interaction string
	mockServer  *MockServer
	mu          *sync.Mutex
	err         *error
}

func newMockServer(info ServerInfo, admin *AdminConfiguration) *MockServer {
	return &MockServer{
		ID:    info.ID,
		URL:   info.URL,
		admin: admin,
		client: http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// New returns a client for a mock server that was started elsewhere.
func New(serverURL string) *MockServer {
	return newMockServer(ServerInfo{URL: serverURL}, nil)
}

// ForInteraction returns a setup for constraints and modifiers of the
// interaction with the given description. Failures are kept and reported
// by Err.
func (m *MockServer) ForInteraction(interaction string) InteractionSetup {
	var err error
	return InteractionSetup{
		interaction: interaction,
		mockServer:  m,
		mu:          &sync.Mutex{},
		err:         &err,
	}
}

func (m *MockServer) post(path string, body map[string]any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	r, err := http.NewRequest("POST", m.URL+controlPrefix+path, bytes.NewBuffer(b))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(r)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		var apiErr struct {
			ErrorMessage string `json:"error_message"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		return errors.Errorf("%s failed with %d: %s", path, res.StatusCode, apiErr.ErrorMessage)
	}
	return nil
}

func (m *MockServer) addConstraint(interaction, path, value string) error {
	return m.post("/interactions/constraints", map[string]any{
		"interaction": interaction,
		"path":        path,
		"format":      "%s",
		"values":      []string{value},
	})
}

func (m *MockServer) addModifier(interaction, path string, value any, attempt *int) error {
	body := map[string]any{
		"interaction": interaction,
		"path":        path,
		"value":       value,
	}
	if attempt != nil {
		body["attempt"] = attempt
	}
	return m.post("/interactions/modifiers", body)
}

func (m *MockServer) addConstraintFrom(interaction, path, fromInteraction, format string, values []string) error {
	return m.post("/interactions/constraints", map[string]any{
		"interaction": interaction,
		"path":        path,
		"source":      fromInteraction,
		"format":      format,
		"values":      values,
	})
}

// IsReady reports whether the server answers its readiness endpoint.
func (m *MockServer) IsReady() bool {
	res, err := m.client.Get(m.URL + controlPrefix + "/ready")
	if err != nil {
		log.Debug(err)
		return false
	}
	res.Body.Close()
	return res.StatusCode == http.StatusOK
}

// WaitForAll blocks until every interaction received a request or the
// server side wait times out.
func (m *MockServer) WaitForAll() error {
	return m.wait(url.Values{})
}

func (m *MockServer) WaitForInteraction(interaction string, count int) error {
	q := url.Values{}
	q.Add("interaction", interaction)
	q.Add("count", strconv.Itoa(count))
	return m.wait(q)
}

func (m *MockServer) wait(q url.Values) error {
	u := m.URL + controlPrefix + "/interactions/wait"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	res, err := m.client.Get(u)
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errors.Errorf("timeout waiting for interactions: %d", res.StatusCode)
	}
	return nil
}

// Interactions returns the runtime state of every interaction.
func (m *MockServer) Interactions() ([]Interaction, error) {
	res, err := m.client.Get(m.URL + controlPrefix + "/interactions")
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out []Interaction
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Verify returns the verification of the session and an error when it
// did not pass.
func (m *MockServer) Verify() (*Verification, error) {
	res, err := m.client.Get(m.URL + controlPrefix + "/verification")
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusExpectationFailed {
		return nil, errors.Errorf("unable to verify mock server: %d", res.StatusCode)
	}
	var v Verification
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		return nil, errors.Wrap(err, "failed to parse verification")
	}
	return &v, v.Err()
}

// Stop stops the server through the admin API it was started with.
func (m *MockServer) Stop() error {
	if m.admin == nil || m.ID == "" {
		return errors.New("mock server was not started by this client")
	}
	return m.admin.delete(m.admin.url+"/mock-servers/"+m.ID, "error stopping mock server")
}

func (s InteractionSetup) record(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if *s.err == nil {
		*s.err = err
	}
}

// Err returns the first failure of AddConstraint, AddModifier or
// AddConstraintFrom.
func (s InteractionSetup) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.err
}

func (s InteractionSetup) AddConstraint(path, value string) InteractionSetup {
	s.record(s.mockServer.addConstraint(s.interaction, path, value))
	return s
}

func (s InteractionSetup) AddModifier(path string, value any, attempt *int) InteractionSetup {
	s.record(s.mockServer.addModifier(s.interaction, path, value, attempt))
	return s
}

func (s InteractionSetup) AddConstraintFrom(path, fromInteraction, format string, values ...string) InteractionSetup {
	s.record(s.mockServer.addConstraintFrom(s.interaction, path, fromInteraction, format, values))
	return s
}
