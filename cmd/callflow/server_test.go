package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/callflow/config"
	"github.com/BaSui01/callflow/internal/metrics"
	"github.com/BaSui01/callflow/testutil"
)

func newTestCollector() *metrics.Collector {
	return metrics.NewCollector("callflow", nil, metrics.WithRegistry(prometheus.NewRegistry()))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Server.MetricsPort = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Call.StartTimeout = time.Second
	cfg.Journey.ContextDir = t.TempDir()

	mr := miniredis.RunT(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	cfg.Database.Enabled = true
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "callflow.db")
	cfg.Database.MaxOpenConns = 1
	cfg.Database.MaxIdleConns = 1
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv := NewServer(cfg, newTestCollector(), zaptest.NewLogger(t))
	require.NoError(t, srv.Init(testutil.TestContext(t)))
	return srv
}

func get(t *testing.T, base, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(base + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	t.Cleanup(func() { srv.Close(context.Background()) })
	require.NotNil(t, srv.calls, "schema migrated and call log enabled")

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, body := get(t, ts.URL, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "callflow media server is running")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	resp, _ = get(t, ts.URL, "/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, path := range []string{"/health", "/healthz", "/ready", "/readyz"} {
		resp, _ = get(t, ts.URL, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	_, body = get(t, ts.URL, "/version")
	assert.Contains(t, body, Version)

	resp, body = get(t, ts.URL, "/v1/calls")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"active":0`)

	resp, _ = get(t, ts.URL, "/v1/calls/history?caller=9876543210")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	form := url.Values{"Caller": {"+91-98765 43210"}}
	resp, err := http.PostForm(ts.URL+"/incoming-call", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	twiml, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")
	assert.Contains(t, string(twiml), "/media-stream/9876543210")
}

func TestServer_MediaStreamUpgradesThroughMiddleware(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	t.Cleanup(func() { srv.Close(context.Background()) })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx := testutil.TestContextWithTimeout(t, 5*time.Second)
	u := testutil.WebSocketURL(ts.URL, "/media-stream/9876543210")
	conn, resp, err := websocket.Dial(ctx, u, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// 未收到 start 事件，服务端在超时后挂断
	_, _, err = conn.Read(ctx)
	assert.Error(t, err)
	_ = conn.CloseNow()
	assert.Zero(t, srv.registry.Len())
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = false
	srv := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.True(t, testutil.WaitFor(func() bool { return srv.manager.Addr("media") != "" }, 2*time.Second))
	_, port, err := net.SplitHostPort(srv.manager.Addr("media"))
	require.NoError(t, err)
	addr := "http://127.0.0.1:" + port
	require.NoError(t, checkHealth(addr, time.Second))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Error(t, checkHealth(addr, 200*time.Millisecond))
}

func TestServer_InitFailsOnBadQuestionnaire(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journey.QuestionnairePath = "/nonexistent/questions.yaml"
	srv := NewServer(cfg, newTestCollector(), zaptest.NewLogger(t))

	err := srv.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init engine")
	assert.Nil(t, srv.calls)
}
