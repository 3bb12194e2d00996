package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/form3tech-oss/pact-consumer/internal/app/contract"
	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockServerStage struct {
	t              *testing.T
	assert         *assert.Assertions
	require        *require.Assertions
	pact           *contract.PactBuilder
	handle         *Handle
	config         Config
	url            string
	responses      []*http.Response
	responseBodies [][]byte
	waitStatus     int
	waitElapsed    time.Duration
	requestsSent   int32
	verification   *Verification
}

const interactionName = "create order"

func NewMockServerStage(t *testing.T) (*MockServerStage, *MockServerStage, *MockServerStage) {
	s := &MockServerStage{
		t:       t,
		assert:  assert.New(t),
		require: require.New(t),
		pact:    contract.New("web", "orders"),
		config:  Config{WaitDelay: 20 * time.Millisecond, WaitDuration: 2 * time.Second},
	}

	t.Cleanup(func() {
		if s.handle != nil {
			_ = s.handle.Close()
			<-s.handle.Done()
		}
	})

	return s, s, s
}

func (s *MockServerStage) and() *MockServerStage {
	return s
}

func (s *MockServerStage) push(ib *contract.InteractionBuilder) {
	i, err := ib.Build()
	s.require.NoError(err)
	s.pact.PushInteraction(i)
}

func (s *MockServerStage) a_contract_that_allows_any_quantity() *MockServerStage {
	s.push(contract.NewInteraction(interactionName, "").
		Request(contract.NewRequest().Post().Path(pattern.StringLiteral("/orders")).
			JSONBody(pattern.Object(map[string]pattern.JSONPattern{"qty": pattern.Like(pattern.Number(1))}))).
		Response(contract.NewResponse().Created().
			JSONBody(pattern.Object(map[string]pattern.JSONPattern{"id": pattern.String("o-1"), "qty": pattern.Number(1)}))))
	return s
}

func (s *MockServerStage) a_contract_for_order_lookup_by_id() *MockServerStage {
	s.push(contract.NewInteraction("get order", "").
		Request(contract.NewRequest().
			Path(pattern.MustStringRegex(`^/orders/\d+$`, "/orders/1")).
			QueryParam("expand", pattern.StringLiteral("items")).
			Header("Accept", pattern.StringLiteral("application/json"))).
		Response(contract.NewResponse().OK().
			Header("X-Version", pattern.StringLiteral("2")).
			JSONBody(pattern.Object(map[string]pattern.JSONPattern{"id": pattern.String("1")}))))
	return s
}

func (s *MockServerStage) a_contract_that_expects_plain_text() *MockServerStage {
	req, err := contract.NewRequest().Post().Path(pattern.StringLiteral("/echo")).Body2("text", "text/plain")
	s.require.NoError(err)
	resp, err := contract.NewResponse().OK().Body2("text", "text/plain")
	s.require.NoError(err)
	s.push(contract.NewInteraction("echo text", "").Request(req).Response(resp))
	return s
}

func (s *MockServerStage) a_contract_that_expects_xml() *MockServerStage {
	r := plugin.NewRegistry(plugin.BuiltinLoader{})
	s.pact.WithRegistry(r)
	_, err := s.pact.ActivatePlugin(context.Background(), "xml", "")
	s.require.NoError(err)

	rb, err := contract.NewRequest().WithResolver(r).Post().Path(pattern.StringLiteral("/orders.xml")).
		Contents(context.Background(), "application/xml", map[string]any{
			"order": map[string]any{"@id": "matching(regex, `^\\d+$`, '1')", "qty": "matching(type, '3')"},
		})
	s.require.NoError(err)

	s.push(contract.NewInteraction("create xml order", "").Request(rb).Response(contract.NewResponse().Created()))
	return s
}

func (s *MockServerStage) the_mock_server_is_started() *MockServerStage {
	p, err := s.pact.Pact()
	s.require.NoError(err)

	s.handle = Start(p, s.config)
	s.url, err = s.handle.URL()
	s.require.NoError(err)
	return s
}

func (s *MockServerStage) a_request_is_sent(method, path, contentType, body string) *MockServerStage {
	req, err := http.NewRequest(method, s.url+path, strings.NewReader(body))
	s.require.NoError(err, "request creation failed")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	s.send(req)
	return s
}

func (s *MockServerStage) send(req *http.Request) {
	res, err := http.DefaultClient.Do(req)
	s.require.NoError(err, "sending request failed")
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	s.assert.NoError(err, "unable to read response body")
	s.responses = append(s.responses, res)
	s.responseBodies = append(s.responseBodies, bodyBytes)
	atomic.AddInt32(&s.requestsSent, 1)
}

func (s *MockServerStage) an_order_is_created_with_quantity(qty string) *MockServerStage {
	return s.a_request_is_sent(http.MethodPost, "/orders", "application/json", fmt.Sprintf(`{"qty":%s}`, qty))
}

func (s *MockServerStage) control(path string, v any) {
	data, err := json.Marshal(v)
	s.require.NoError(err)
	res, err := http.Post(s.url+controlPrefix+path, "application/json", bytes.NewReader(data))
	s.require.NoError(err)
	defer res.Body.Close()
	s.require.Equal(http.StatusNoContent, res.StatusCode)
}

func (s *MockServerStage) a_constraint_is_added(path string, value any) *MockServerStage {
	s.control("/interactions/constraints", Constraint{Interaction: interactionName, Path: path, Values: []any{value}})
	return s
}

func (s *MockServerStage) a_modifier_is_added(path string, value any, attempt *int) *MockServerStage {
	s.control("/interactions/modifiers", Modifier{Interaction: interactionName, Path: path, Value: value, Attempt: attempt})
	return s
}

func (s *MockServerStage) requests_are_sent_in_the_background(n int) *MockServerStage {
	go func() {
		for i := 0; i < n; i++ {
			time.Sleep(20 * time.Millisecond)
			res, err := http.Post(s.url+"/orders", "application/json", strings.NewReader(`{"qty":1}`))
			if err == nil {
				res.Body.Close()
			}
		}
	}()
	return s
}

func (s *MockServerStage) the_client_waits_for(count int) *MockServerStage {
	return s.wait(fmt.Sprintf("%s%s/interactions/wait?interaction=%s&count=%d",
		s.url, controlPrefix, strings.ReplaceAll(interactionName, " ", "%20"), count))
}

func (s *MockServerStage) the_client_waits_for_all_with_timeout(timeout string) *MockServerStage {
	return s.wait(fmt.Sprintf("%s%s/interactions/wait?timeout=%s", s.url, controlPrefix, timeout))
}

func (s *MockServerStage) wait(url string) *MockServerStage {
	client := http.Client{Timeout: 10 * time.Second}
	start := time.Now()
	res, err := client.Get(url)
	s.require.NoError(err)
	defer res.Body.Close()
	s.waitStatus = res.StatusCode
	s.waitElapsed = time.Since(start)
	return s
}

func (s *MockServerStage) the_server_is_verified() *MockServerStage {
	v, err := s.handle.Verify()
	s.require.NoError(err)
	s.verification = v
	return s
}

func (s *MockServerStage) the_nth_response_is_(n, statusCode int) *MockServerStage {
	s.require.GreaterOrEqual(len(s.responses), n, "number of responses is less than expected")
	s.assert.Equalf(statusCode, s.responses[n-1].StatusCode, "unexpected status on attempt %d: %s", n, s.responseBodies[n-1])
	return s
}

func (s *MockServerStage) the_response_is_(statusCode int) *MockServerStage {
	return s.the_nth_response_is_(len(s.responses), statusCode)
}

func (s *MockServerStage) the_response_body_is(expected string) *MockServerStage {
	s.assert.JSONEq(expected, string(s.responseBodies[len(s.responseBodies)-1]))
	return s
}

func (s *MockServerStage) the_response_header_is(name, value string) *MockServerStage {
	s.assert.Equal(value, s.responses[len(s.responses)-1].Header.Get(name))
	return s
}

func (s *MockServerStage) the_mismatch_report_mentions(fragment string) *MockServerStage {
	s.assert.Contains(string(s.responseBodies[len(s.responseBodies)-1]), fragment)
	return s
}

func (s *MockServerStage) the_wait_succeeds() *MockServerStage {
	s.assert.Equal(http.StatusOK, s.waitStatus)
	return s
}

func (s *MockServerStage) the_wait_times_out() *MockServerStage {
	s.assert.Equal(http.StatusRequestTimeout, s.waitStatus)
	return s
}

func (s *MockServerStage) the_wait_took_less_than(d time.Duration) *MockServerStage {
	s.assert.Less(s.waitElapsed, d)
	return s
}

func (s *MockServerStage) verification_is_successful() *MockServerStage {
	s.assert.NoError(s.verification.Err())
	return s
}

func (s *MockServerStage) verification_reports_unmatched_requests(n int) *MockServerStage {
	s.assert.Len(s.verification.Unmatched, n)
	s.assert.ErrorIs(s.verification.Err(), ErrVerificationFailed)
	return s
}

func (s *MockServerStage) the_interaction_has_requests(n int) *MockServerStage {
	s.assert.Equal(n, s.verification.Interactions[0].RequestCount)
	return s
}
