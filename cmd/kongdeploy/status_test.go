// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kongdeploy/kongdeploy/internal/observability"
	"github.com/kongdeploy/kongdeploy/pkg/errutil"
)

func probeServer(t *testing.T, ready bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(observability.LivenessPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc(observability.ReadinessPath, func(w http.ResponseWriter, _ *http.Request) {
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func statusCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	return cmd
}

func TestStatus_Table(t *testing.T) {
	srv := probeServer(t, true)
	out := new(bytes.Buffer)

	err := runStatus(statusCmd(out), &statusConfig{addr: srv.URL}, srv.Client())
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "PROBE")
	assert.Contains(t, output, "liveness")
	assert.Contains(t, output, "readiness")
	assert.NotContains(t, output, "failing")
}

func TestStatus_NotReady(t *testing.T) {
	srv := probeServer(t, false)
	out := new(bytes.Buffer)

	err := runStatus(statusCmd(out), &statusConfig{addr: srv.URL}, srv.Client())
	errutil.AssertErrorCode(t, err, "STATUS_UNHEALTHY")
	errutil.AssertErrorContext(t, err, "probe", "readiness")
	assert.Contains(t, out.String(), "not ready")
}

func TestStatus_JSON(t *testing.T) {
	srv := probeServer(t, true)
	out := new(bytes.Buffer)

	addr := strings.TrimPrefix(srv.URL, "http://")
	err := runStatus(statusCmd(out), &statusConfig{addr: addr, jsonOutput: true}, srv.Client())
	require.NoError(t, err)

	var statuses []ProbeStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "liveness", statuses[0].Probe)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, http.StatusOK, statuses[1].StatusCode)
	assert.Equal(t, srv.URL+observability.ReadinessPath, statuses[1].URL)
}

func TestStatus_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	out := new(bytes.Buffer)
	err := runStatus(statusCmd(out), &statusConfig{addr: addr}, &http.Client{Timeout: time.Second})
	errutil.AssertErrorCode(t, err, "STATUS_UNHEALTHY")
	assert.Contains(t, out.String(), "failed to connect")
}

func TestFormatStatusTable(t *testing.T) {
	table := formatStatusTable([]ProbeStatus{
		{Probe: "liveness", Healthy: true, StatusCode: 200, Body: "ok"},
		{Probe: "readiness", Error: "failed to connect: refused"},
	})
	lines := strings.Split(strings.TrimSpace(table), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "200")
	assert.Contains(t, lines[3], "failing")
	assert.Contains(t, lines[3], "-")
}
