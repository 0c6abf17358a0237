package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/callflow/config"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func get(t *testing.T, addr string) string {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestEndpointsFromConfig(t *testing.T) {
	cfg := config.DefaultServerConfig()
	media := MediaEndpoint(cfg, http.NotFoundHandler())
	assert.Equal(t, "media", media.Name)
	assert.Equal(t, ":5050", media.Addr)
	assert.Equal(t, cfg.ReadTimeout, media.ReadTimeout)

	metrics := MetricsEndpoint(cfg, http.NotFoundHandler())
	assert.Equal(t, ":9091", metrics.Addr)
}

func TestManager_ServeAndShutdown(t *testing.T) {
	m := NewManager(time.Second, zaptest.NewLogger(t))
	m.Add(Endpoint{Name: "media", Addr: "127.0.0.1:0", Handler: okHandler("media")})
	m.Add(Endpoint{Name: "metrics", Addr: "127.0.0.1:0", Handler: okHandler("metrics")})

	var hooked atomic.Bool
	m.OnShutdown(func(ctx context.Context) error {
		hooked.Store(true)
		return nil
	})

	require.NoError(t, m.Listen())
	assert.ErrorIs(t, m.Listen(), ErrAlreadyListening)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	assert.Equal(t, "media", get(t, m.Addr("media")))
	assert.Equal(t, "metrics", get(t, m.Addr("metrics")))
	assert.Empty(t, m.Addr("unknown"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.True(t, hooked.Load())
}

func TestManager_ListenReleasesOnFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	m := NewManager(time.Second, nil)
	m.Add(Endpoint{Name: "media", Addr: "127.0.0.1:0", Handler: okHandler("x")})
	m.Add(Endpoint{Name: "metrics", Addr: busy.Addr().String(), Handler: okHandler("y")})

	err = m.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics")
	assert.Empty(t, m.Addr("media"))
}

func TestManager_HookErrorIsReturned(t *testing.T) {
	m := NewManager(time.Second, nil)
	m.Add(Endpoint{Name: "media", Addr: "127.0.0.1:0", Handler: okHandler("x")})
	boom := errors.New("drain failed")
	m.OnShutdown(func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Serve(ctx)
	assert.ErrorIs(t, err, boom)
}
