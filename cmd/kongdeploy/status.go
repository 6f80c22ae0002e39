// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kongdeploy/kongdeploy/internal/observability"
)

const (
	defaultStatusAddr    = "127.0.0.1:9100"
	defaultStatusTimeout = 2 * time.Second
)

// ProbeStatus holds the result of one health probe.
type ProbeStatus struct {
	Probe      string `json:"probe"`
	URL        string `json:"url"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	timeout    time.Duration
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running KongDeploy server",
		Long: `Query the liveness and readiness probes on the observability listener.
Exits non-zero when the server is not ready.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, &http.Client{Timeout: cfg.timeout})
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "metrics-addr", defaultStatusAddr, "observability listener address")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultStatusTimeout, "per-probe timeout")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig, client *http.Client) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	base := cfg.addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	statuses := []ProbeStatus{
		probe(ctx, client, "liveness", base+observability.LivenessPath),
		probe(ctx, client, "readiness", base+observability.ReadinessPath),
	}

	if cfg.jsonOutput {
		output, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(output)
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	for _, s := range statuses {
		if !s.Healthy {
			return oops.Code("STATUS_UNHEALTHY").With("probe", s.Probe).Errorf("%s probe failed", s.Probe)
		}
	}
	return nil
}

func probe(ctx context.Context, client *http.Client, name, url string) ProbeStatus {
	status := ProbeStatus{Probe: name, URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	status.StatusCode = resp.StatusCode
	status.Body = strings.TrimSpace(string(body))
	status.Healthy = resp.StatusCode == http.StatusOK
	return status
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t------")

	for _, s := range statuses {
		state := "ok"
		if !s.Healthy {
			state = "failing"
		}
		code := "-"
		if s.StatusCode != 0 {
			code = fmt.Sprintf("%d", s.StatusCode)
		}
		detail := s.Body
		if s.Error != "" {
			detail = s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Probe, state, code, detail)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the probes as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}
