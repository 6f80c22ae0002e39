// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	_, err := server.Start()
	require.NoError(t, err, "failed to start server")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test against local listener
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil)

	metrics := server.Metrics()
	metrics.ObserveHTTPRequest("/login", "POST", 401, 20*time.Millisecond)
	metrics.ObserveHTTPRequest("/login", "POST", 200, 30*time.Millisecond)
	metrics.RecordAuthEvent("login", "success")

	status, body := get(t, "http://"+server.Addr()+MetricsPath)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `kongdeploy_http_requests_total{method="POST",route="/login",status="401"} 1`)
	assert.Contains(t, body, "kongdeploy_http_request_duration_seconds")
	assert.Contains(t, body, `kongdeploy_auth_events_total{event="login",outcome="success"} 1`)
}

func TestServer_Probes(t *testing.T) {
	t.Run("liveness", func(t *testing.T) {
		server := startServer(t, func() bool { return false })
		status, body := get(t, "http://"+server.Addr()+LivenessPath)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ok", strings.TrimSpace(body))
	})

	t.Run("ready", func(t *testing.T) {
		server := startServer(t, func() bool { return true })
		status, _ := get(t, "http://"+server.Addr()+ReadinessPath)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("not ready", func(t *testing.T) {
		server := startServer(t, func() bool { return false })
		status, body := get(t, "http://"+server.Addr()+ReadinessPath)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "not ready", strings.TrimSpace(body))
	})

	t.Run("nil checker is ready", func(t *testing.T) {
		server := startServer(t, nil)
		status, _ := get(t, "http://"+server.Addr()+ReadinessPath)
		assert.Equal(t, http.StatusOK, status)
	})
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	assert.NoError(t, server.Stop(context.Background()))
	assert.Empty(t, server.Addr())
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serve error")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}

func TestServer_ListenFailure(t *testing.T) {
	first := startServer(t, nil)
	second := NewServer(first.Addr(), nil)
	_, err := second.Start()
	require.Error(t, err)

	// A failed start leaves the server startable again.
	second.addr = "127.0.0.1:0"
	_, err = second.Start()
	require.NoError(t, err)
	_ = second.Stop(context.Background())
}
