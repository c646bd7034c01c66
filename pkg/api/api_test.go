package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/apiresponses"
	"github.com/telekom/mail-dispatcher/pkg/config"
	"github.com/telekom/mail-dispatcher/pkg/dispatcher"
	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/system"
	"github.com/telekom/mail-dispatcher/pkg/version"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	server     *Server
	dispatcher *dispatcher.Dispatcher
	delivered  chan mail.Item
}

func newTestServer(t *testing.T, cfg config.Server) *testServer {
	t.Helper()
	ts := &testServer{delivered: make(chan mail.Item, 16)}
	transport := mail.TransportFunc(func(_ context.Context, _ endpoint.Config, item mail.Item) error {
		if item.Subject == "Please bounce this" {
			return &mail.TransportError{Code: 550, Text: "mailbox unavailable"}
		}
		ts.delivered <- item
		return nil
	})

	reg := worker.NewRegistry(system.NewTestLogger())
	ts.dispatcher = dispatcher.New(reg, transport, dispatcher.Options{
		Queue: mail.QueueConfig{WorkerName: "api test worker", Tick: time.Millisecond},
	}, system.NewTestLogger())
	t.Cleanup(func() { ts.dispatcher.Shutdown(time.Second) })

	ts.server = NewServer(zap.NewNop(), cfg, true)
	require.NoError(t, ts.server.RegisterAll([]APIController{
		NewDispatcherController(system.NewTestLogger(), ts.dispatcher),
	}))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) registerEndpoint(t *testing.T) int64 {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/endpoints", RegisterEndpointRequest{
		Host: "smtp.example.com", Port: 587, SecurityMode: 1, User: "mailer", Password: "secret", Database: "db1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotZero(t, resp.ID)
	return resp.ID
}

func validItem(itemID int64) SendItemRequest {
	return SendItemRequest{
		ItemID:           itemID,
		SenderName:       "Sender",
		SenderAddress:    "sender@example.com",
		RecipientName:    "Recipient",
		RecipientAddress: "recipient@example.com",
		Subject:          "Monthly report",
		Body:             "<p>hello</p>",
		Priority:         2,
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apiresponses.APIError {
	t.Helper()
	var e apiresponses.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestOperationalEndpoints(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mail_dispatcher_")
}

func TestHealthzReportsComponents(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	type component struct {
		Healthy bool           `json:"healthy"`
		Detail  map[string]int `json:"detail"`
	}
	var health struct {
		Status     string               `json:"status"`
		Components map[string]component `json:"components"`
	}

	w := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Components)

	healthy := true
	ts.server.AddHealthCheck("audit", func() (any, bool) {
		return map[string]int{"queueLength": 9}, healthy
	})

	w = ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	require.Contains(t, health.Components, "audit")
	assert.True(t, health.Components["audit"].Healthy)
	assert.Equal(t, 9, health.Components["audit"].Detail["queueLength"])

	healthy = false
	w = ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code, "a degraded component still answers 200")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.Components["audit"].Healthy)
}

func TestEndpointLifecycle(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	id := ts.registerEndpoint(t)

	// Registering an equal endpoint returns the same id.
	assert.Equal(t, id, ts.registerEndpoint(t))

	w := ts.do(t, http.MethodGet, "/api/endpoints", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []endpoint.Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "smtp.example.com", list[0].Host)
	assert.Empty(t, list[0].Password, "passwords are never listed")

	w = ts.do(t, http.MethodDelete, "/api/endpoints/"+itoa(id), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/endpoints/"+itoa(id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, mail.CodeEndpointNotFound, decodeError(t, w).Result)
}

func TestRegisterEndpointValidation(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	w := ts.do(t, http.MethodPost, "/api/endpoints", RegisterEndpointRequest{
		Host: "smtp.example.com", Port: 70000, User: "u", Password: "p", Database: "db1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, mail.CodeInvalidPort, decodeError(t, w).Result)

	w = ts.do(t, http.MethodPost, "/api/endpoints", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, mail.CodeInvalidRequest, decodeError(t, w).Result)
}

func TestMalformedRequestsAnswerInvalidRequest(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	id := itoa(ts.registerEndpoint(t))

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"endpoint body", http.MethodPost, "/api/endpoints", "{not json"},
		{"item body", http.MethodPost, "/api/endpoints/" + id + "/items", "[]"},
		{"endpoint id", http.MethodDelete, "/api/endpoints/abc", nil},
		{"item id", http.MethodGet, "/api/endpoints/" + id + "/items/x/result", nil},
		{"erase flag", http.MethodGet, "/api/endpoints/" + id + "/items/1/result?erase=maybe", nil},
		{"wait", http.MethodGet, "/api/queue/db1/count?waitMs=-5", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			e := decodeError(t, w)
			assert.Equal(t, mail.CodeInvalidRequest, e.Result)
			assert.Equal(t, "INVALID_REQUEST", e.Code)
			assert.Contains(t, e.Error, dispatcher.ErrInvalidRequest.Error())
		})
	}
}

func TestQueuedSendAndResult(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	id := ts.registerEndpoint(t)

	w := ts.do(t, http.MethodPost, "/api/endpoints/"+itoa(id)+"/items", validItem(1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"result":0}`, w.Body.String())

	select {
	case item := <-ts.delivered:
		assert.Equal(t, int64(1), item.ID)
		assert.Equal(t, mail.PriorityHigh, item.Priority)
	case <-time.After(2 * time.Second):
		t.Fatal("item was not delivered")
	}

	path := "/api/endpoints/" + itoa(id) + "/items/1/result?erase=true"
	require.Eventually(t, func() bool {
		return ts.do(t, http.MethodGet, "/api/endpoints/"+itoa(id)+"/items/1/result", nil).Code == http.StatusOK
	}, 2*time.Second, 5*time.Millisecond)

	w = ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res ResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, mail.CodeSuccess, res.Status)
	assert.False(t, res.CompletedAt.IsZero())

	w = ts.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "erase removes the result")
	assert.Equal(t, mail.CodeNotFound, decodeError(t, w).Result)
}

func TestImmediateSendReportsOutcome(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	id := ts.registerEndpoint(t)

	item := validItem(2)
	item.Immediate = true
	item.Subject = "Please bounce this"
	w := ts.do(t, http.MethodPost, "/api/endpoints/"+itoa(id)+"/items", item)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":-12}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/endpoints/"+itoa(id)+"/items/2/result", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res ResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, mail.CodeNotSent, res.Status)
	assert.Equal(t, 550, res.ErrorCode)
	assert.Equal(t, "mailbox unavailable", res.ErrorText)
}

func TestSendValidation(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	id := ts.registerEndpoint(t)

	tests := []struct {
		name   string
		mutate func(r *SendItemRequest)
		want   mail.Code
	}{
		{"empty body", func(r *SendItemRequest) { r.Body = "" }, mail.CodeInvalidContent},
		{"bad sender", func(r *SendItemRequest) { r.SenderAddress = "not-an-address" }, mail.CodeInvalidSender},
		{"bad recipient", func(r *SendItemRequest) { r.RecipientAddress = "a@b" }, mail.CodeInvalidRecipient},
		{"short subject", func(r *SendItemRequest) { r.Subject = "Hi" }, mail.CodeInvalidSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validItem(3)
			tt.mutate(&req)
			w := ts.do(t, http.MethodPost, "/api/endpoints/"+itoa(id)+"/items", req)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, tt.want, decodeError(t, w).Result)
		})
	}

	w := ts.do(t, http.MethodPost, "/api/endpoints/999/items", validItem(4))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, mail.CodeInvalidEndpoint, decodeError(t, w).Result)

	w = ts.do(t, http.MethodPost, "/api/endpoints/abc/items", validItem(4))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueCountAndCancel(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	w := ts.do(t, http.MethodGet, "/api/queue/db1/count?waitMs=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count CountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &count))
	assert.Equal(t, CountResponse{Database: "db1", Count: 0}, count)

	w = ts.do(t, http.MethodGet, "/api/queue/db1/count?waitMs=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/queue/db1/count?cancel=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/queue/db1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestWorkersSnapshot(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	id := ts.registerEndpoint(t)
	ts.do(t, http.MethodPost, "/api/endpoints/"+itoa(id)+"/items", validItem(1))

	w := ts.do(t, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var infos []worker.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	for _, info := range infos {
		assert.Equal(t, "api test worker", info.Name)
	}
}

func TestRateLimitSparesOperationalEndpoints(t *testing.T) {
	ts := newTestServer(t, config.Server{RateLimit: config.RateLimit{RequestsPerSecond: 1, Burst: 1}})
	t.Cleanup(func() { _ = ts.server.Shutdown(context.Background()) })

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/workers", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodGet, "/api/workers", nil).Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, config.Server{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/endpoints", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(system.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(system.RequestIDHeader))
}

func TestShutdownWithoutListen(t *testing.T) {
	s := NewServer(zap.NewNop(), config.Server{ListenAddress: "127.0.0.1:0"}, true)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
