package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/annel0/layoutd/internal/auth"
	"github.com/annel0/layoutd/internal/cache"
	"github.com/annel0/layoutd/internal/eventbus"
	"github.com/annel0/layoutd/internal/service"
	"github.com/annel0/layoutd/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	validRecord = "v2 2x2 st0ar1bl0gl0 de"
	badRecord   = "v2 2x2 st0ar1bl0gl0 fg"
)

type testEnv struct {
	server   *RestServer
	webhooks *OutboundWebhookManager
	bus      eventbus.EventBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg := prometheus.NewRegistry()
	bus := eventbus.NewMemoryBus(64)
	t.Cleanup(func() { _ = bus.Close() })

	svc, err := service.New(service.Options{
		Repo:       storage.NewMemoryRecordRepo(),
		Cache:      cache.NewMemoryCache(time.Minute, 100, nil),
		Bus:        bus,
		Registerer: reg,
	})
	require.NoError(t, err)

	users := auth.NewMemoryUserRepo()
	_, err = auth.SeedAdmin(users, "admin", "admin-pw")
	require.NoError(t, err)
	hash, err := auth.HashPassword("alice-pw")
	require.NoError(t, err)
	_, err = users.CreateUser("alice", hash, false)
	require.NoError(t, err)
	hash, err = auth.HashPassword("bob-pw")
	require.NoError(t, err)
	_, err = users.CreateUser("bob", hash, false)
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager(nil, time.Hour)
	require.NoError(t, err)

	webhooks := NewOutboundWebhookManager("test-node")
	webhooks.retryDelay = time.Millisecond
	t.Cleanup(webhooks.Close)
	_, err = webhooks.Attach(context.Background(), bus)
	require.NoError(t, err)

	server := NewRestServer(Config{
		Service:       svc,
		Authenticator: auth.NewAuthenticator(users, tokens),
		Webhooks:      webhooks,
		Registerer:    reg,
		Gatherer:      reg,
		Version:       "test",
	})
	return &testEnv{server: server, webhooks: webhooks, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

type dataResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var resp dataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestDecodeEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/layouts/decode?render=true", "", DecodeRequest{Input: validRecord})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view LayoutView
	decodeData(t, w, &view)
	assert.False(t, view.Cached)
	assert.Equal(t, 2, view.Layout.Height)
	assert.Len(t, view.Layout.Cells, 3)
	assert.Equal(t, "st0", view.Layout.Cells[0][0])
	assert.NotEmpty(t, view.Render)

	w = env.do(t, http.MethodPost, "/api/layouts/decode", "", DecodeRequest{Input: validRecord})
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &view)
	assert.True(t, view.Cached)
}

func TestDecodeEndpoint_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/layouts/decode", "", DecodeRequest{Input: badRecord})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid_digit", resp.ErrorKind)
	require.NotNil(t, resp.Row)
	require.NotNil(t, resp.Col)
	assert.Equal(t, 1, *resp.Row)
	assert.Equal(t, 2, *resp.Col)

	w = env.do(t, http.MethodPost, "/api/layouts/decode", "", DecodeRequest{Input: "v1 2x2 x y"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp = ErrorResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unsupported_version", resp.ErrorKind)
	assert.Nil(t, resp.Row)

	w = env.do(t, http.MethodPost, "/api/layouts/decode", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := DecodeRequest{Input: strings.Repeat("a", MaxRequestBytes+1)}
	w = env.do(t, http.MethodPost, "/api/layouts/decode", "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := LoginRequest{Username: "alice", Password: strings.Repeat("a", MaxRequestBytes+1)}
	w = env.do(t, http.MethodPost, "/api/auth/login", "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.NotEmpty(t, env.login(t, "alice", "alice-pw"))
}

func TestLayoutLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice", "alice-pw")
	bob := env.login(t, "bob", "bob-pw")
	admin := env.login(t, "admin", "admin-pw")

	w := env.do(t, http.MethodPost, "/api/layouts", "", SaveRequest{Input: validRecord})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "сохранение требует токен")

	w = env.do(t, http.MethodPost, "/api/layouts", alice, SaveRequest{Input: badRecord})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodPost, "/api/layouts", alice, SaveRequest{Name: "room", Input: validRecord})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var saved struct {
		Record storage.Record `json:"record"`
	}
	decodeData(t, w, &saved)
	assert.Equal(t, "alice", saved.Record.Owner)
	assert.Equal(t, "room", saved.Record.Name)
	id := saved.Record.ID
	require.NotEmpty(t, id)

	w = env.do(t, http.MethodGet, "/api/layouts/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got RecordView
	decodeData(t, w, &got)
	assert.Equal(t, id, got.Record.ID)
	assert.Equal(t, 2, got.Layout.Width)

	w = env.do(t, http.MethodGet, "/api/layouts?owner=alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Layouts []storage.Record `json:"layouts"`
		Total   int              `json:"total"`
	}
	decodeData(t, w, &list)
	assert.Equal(t, 1, list.Total)

	w = env.do(t, http.MethodGet, "/api/layouts?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/layouts/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/layouts/"+id, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/layouts/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/layouts/"+id, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerInfo(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/server", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/server", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/server", env.login(t, "alice", "alice-pw"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info ServerInfo
	decodeData(t, w, &info)
	assert.Equal(t, "layoutd", info.Name)
	assert.Equal(t, "test", info.Version)
	assert.Greater(t, info.Goroutines, 0)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/layouts/decode", "", DecodeRequest{Input: validRecord})

	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `layoutd_decode_total{outcome="ok"} 1`)
	assert.Contains(t, body, "layoutd_http_request_duration_seconds")
}

func TestAdminWebhooks(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice", "alice-pw")
	admin := env.login(t, "admin", "admin-pw")

	var (
		mu        sync.Mutex
		received  []OutboundWebhookEvent
		signature string
	)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev OutboundWebhookEvent
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &ev)
		mu.Lock()
		received = append(received, ev)
		signature = r.Header.Get("X-Webhook-Signature")
		mu.Unlock()
		assert.Equal(t, generateSignature(body, "s3cret"), r.Header.Get("X-Webhook-Signature"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer target.Close()

	hook := OutboundWebhook{Name: "ci", URL: target.URL, Secret: "s3cret", Events: []string{eventbus.EventLayoutSaved}}

	w := env.do(t, http.MethodPost, "/api/admin/webhooks", alice, hook)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/webhooks", admin, OutboundWebhook{Name: "bad", URL: "ftp://x", Events: []string{"*"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/webhooks", admin, hook)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created OutboundWebhook
	decodeData(t, w, &created)
	assert.Equal(t, uint64(1), created.ID)

	w = env.do(t, http.MethodGet, "/api/admin/webhooks/events", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), eventbus.EventLayoutDeleted)

	w = env.do(t, http.MethodPost, "/api/layouts", alice, SaveRequest{Input: validRecord})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, eventbus.EventLayoutSaved, received[0].EventType)
	assert.Equal(t, "alice", received[0].Data["owner"])
	assert.NotEmpty(t, signature)
	mu.Unlock()

	w = env.do(t, http.MethodGet, "/api/admin/webhooks/1", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, "/api/admin/webhooks/1", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/admin/webhooks/1", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/admin/webhooks/x", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRetriesAndFailures(t *testing.T) {
	owm := NewOutboundWebhookManager("node")
	owm.retryDelay = time.Millisecond
	defer owm.Close()

	var (
		mu    sync.Mutex
		calls int
	)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	hook, err := owm.AddWebhook(OutboundWebhook{Name: "down", URL: target.URL, Events: []string{"*"}, RetryCount: 2})
	require.NoError(t, err)

	ev, err := eventbus.NewLayoutDeletedEvent("id", "alice")
	require.NoError(t, err)
	owm.Enqueue(ev)

	assert.Eventually(t, func() bool {
		stored, _ := owm.GetWebhook(hook.ID)
		return stored.FailureCount == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 3, calls, "первая попытка и два повтора")
	mu.Unlock()
}

func TestServerIntegration_GRPCHealth(t *testing.T) {
	env := newTestEnv(t)

	si, err := NewServerIntegration(IntegrationConfig{
		RestAddr: "127.0.0.1:0",
		GRPCAddr: "127.0.0.1:0",
		Rest:     env.server,
	})
	require.NoError(t, err)
	require.NoError(t, si.Start())

	conn, err := grpc.Dial(si.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	require.NoError(t, si.Stop(context.Background()))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5с", formatUptime(5*time.Second))
	assert.Equal(t, "2м 5с", formatUptime(2*time.Minute+5*time.Second))
	assert.Equal(t, "1ч 0м 0с", formatUptime(time.Hour))
	assert.Equal(t, "1д 1ч 0м 0с", formatUptime(25*time.Hour))
}
