package mockclient_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/form3tech-oss/pact-consumer/internal/app/configuration"
	"github.com/form3tech-oss/pact-consumer/internal/app/mockserver"
	"github.com/form3tech-oss/pact-consumer/pkg/mockclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersDefinition() mockclient.Definition {
	return mockclient.Definition{
		Consumer: "web",
		Provider: "orders",
		Interactions: []mockclient.InteractionDefinition{{
			Description: "create order",
			Request: mockclient.RequestDefinition{
				Method:         "POST",
				Path:           "/orders",
				BodyDefinition: mockclient.BodyDefinition{Body: map[string]any{"qty": map[string]any{"$match": "like", "value": 1}}},
			},
			Response: mockclient.ResponseDefinition{
				Status:         201,
				BodyDefinition: mockclient.BodyDefinition{Body: map[string]any{"id": "o-1"}},
			},
		}},
	}
}

func startAdmin(t *testing.T) *mockclient.AdminConfiguration {
	t.Helper()
	ts := httptest.NewServer(configuration.NewAdminAPI(configuration.Config{
		MockServer: mockserver.Config{WaitDelay: 20 * time.Millisecond, WaitDuration: time.Second},
	}))
	conf := mockclient.Configuration(ts.URL + "/")
	t.Cleanup(func() {
		_ = conf.Reset()
		ts.Close()
	})
	return conf
}

func createOrder(t *testing.T, m *mockclient.MockServer, qty string) int {
	t.Helper()
	res, err := http.Post(m.URL+"/orders", "application/json", strings.NewReader(`{"qty":`+qty+`}`))
	require.NoError(t, err)
	res.Body.Close()
	return res.StatusCode
}

func TestMockServerLifecycle(t *testing.T) {
	conf := startAdmin(t)

	m, err := conf.StartMockServer(ordersDefinition())
	require.NoError(t, err)
	assert.True(t, m.IsReady())

	_, err = m.Verify()
	assert.ErrorIs(t, err, mockserver.ErrVerificationFailed)

	require.NoError(t, m.ForInteraction("create order").AddConstraint("$.body.qty", "3").Err())
	assert.Equal(t, http.StatusInternalServerError, createOrder(t, m, "4"))
	assert.Equal(t, http.StatusCreated, createOrder(t, m, "3"))
	require.NoError(t, m.WaitForInteraction("create order", 1))

	interactions, err := m.Interactions()
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, 1, interactions[0].RequestCount)

	v, err := m.Verify()
	assert.ErrorIs(t, err, mockserver.ErrVerificationFailed)
	assert.Len(t, v.Unmatched, 1)

	servers, err := conf.Servers()
	require.NoError(t, err)
	assert.Len(t, servers, 1)

	require.NoError(t, m.Stop())
	assert.False(t, m.IsReady())
	assert.Error(t, m.Stop())
}

func TestMockServerModifierAndWaitForAll(t *testing.T) {
	conf := startAdmin(t)

	m, err := conf.StartMockServer(ordersDefinition())
	require.NoError(t, err)

	attempt := 1
	require.NoError(t, m.ForInteraction("create order").AddModifier("$.status", 409, &attempt).Err())

	assert.Equal(t, http.StatusConflict, createOrder(t, m, "1"))
	assert.Equal(t, http.StatusCreated, createOrder(t, m, "1"))
	require.NoError(t, m.WaitForAll())

	v, err := m.Verify()
	require.NoError(t, err)
	assert.True(t, v.OK())
}

func TestInteractionSetupKeepsFirstError(t *testing.T) {
	conf := startAdmin(t)

	m, err := conf.StartMockServer(ordersDefinition())
	require.NoError(t, err)

	setup := m.ForInteraction("unknown").
		AddConstraint("$.body.qty", "1").
		AddModifier("$.headers", "x", nil)
	assert.ErrorContains(t, setup.Err(), "unable to find interaction")
}

func TestWaitForInteractionTimesOut(t *testing.T) {
	conf := startAdmin(t)

	m, err := conf.StartMockServer(ordersDefinition())
	require.NoError(t, err)

	assert.Error(t, m.WaitForInteraction("create order", 1))
}

func TestStartMockServer(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		wantErr  bool
	}{
		{name: "created", status: http.StatusCreated, response: `{"id":"1","url":"http://127.0.0.1:1"}`},
		{name: "rejected", status: http.StatusBadRequest, response: `{"error_message":"bad"}`, wantErr: true},
		{name: "garbage", status: http.StatusCreated, response: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/mock-servers", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				rw.WriteHeader(tt.status)
				_, _ = rw.Write([]byte(tt.response))
			}))
			defer ts.Close()

			m, err := mockclient.Configuration(ts.URL).StartMockServer(ordersDefinition())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "1", m.ID)
			assert.Equal(t, "http://127.0.0.1:1", m.URL)
		})
	}
}

func TestStartMockServerValidatesLocally(t *testing.T) {
	d := ordersDefinition()
	d.Provider = ""

	_, err := mockclient.Configuration("http://127.0.0.1:1").StartMockServer(d)
	assert.Error(t, err)
}
