// Copyright 2025 The Outboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/outboardhq/outboard/internal/bridge"
	"github.com/outboardhq/outboard/internal/commands/shared"
	"github.com/outboardhq/outboard/pkg/httpclient"
)

const statusProbeTimeout = 5 * time.Second

// statusResult is the --json document for bridge status.
type statusResult struct {
	Running   bool   `json:"running"`
	External  bool   `json:"external,omitempty"`
	Healthy   bool   `json:"healthy"`
	PID       int    `json:"pid,omitempty"`
	Port      int    `json:"port,omitempty"`
	URL       string `json:"url,omitempty"`
	BundleDir string `json:"bundle_dir,omitempty"`
	Schema    string `json:"schema_path,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	Errors    string `json:"errors,omitempty"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bridge status",
		Long: `Show whether a bridge is running and healthy.

Reports the managed instance recorded in the state directory when there
is one; otherwise probes the configured endpoint, which may be served by
an externally managed bridge.`,
		Example: `  # Human-readable status
  outboard bridge status

  # Status for scripts
  outboard bridge status --json

  # Extract the PID
  outboard bridge status --json | jq -r '.pid'`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, running, err := bridge.DetachedStatus()
	if err != nil {
		return err
	}

	res := statusResult{Running: running}
	if st != nil {
		res.PID = st.PID
		res.Port = st.Port
		res.URL = st.URL
		res.BundleDir = st.BundleDir
		res.Schema = st.SchemaPath
		if !st.StartedAt.IsZero() {
			res.StartedAt = st.StartedAt.Format(time.RFC3339)
		}
	}

	probeURL := cfg.Bridge.URL
	if running && st.URL != "" {
		probeURL = st.URL
	}
	res.Healthy, res.Errors = probeStatusEndpoint(cmd.Context(), probeURL)

	// A reachable endpoint with no managed instance behind it belongs to
	// someone else.
	if !running && res.Healthy {
		res.External = true
		res.URL = probeURL
	}

	if shared.GetJSON() {
		if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
			return err
		}
	} else {
		printStatus(res)
	}

	if !running && !res.Healthy {
		return &shared.ExitError{Code: shared.ExitBridgeUnavailable, Message: "bridge is not running"}
	}
	return nil
}

func printStatus(res statusResult) {
	switch {
	case res.Running:
		fmt.Println(shared.RenderStatus(true, "running") + " bridge")
	case res.External:
		fmt.Println(shared.RenderStatus(true, "external") + " bridge (not managed by outboard)")
	default:
		fmt.Println(shared.RenderStatus(false, "stopped") + " bridge")
		fmt.Println(shared.Muted.Render("  start one with: outboard bridge start"))
		return
	}

	if res.PID != 0 {
		fmt.Println(shared.RenderKV("pid", res.PID))
	}
	if res.URL != "" {
		fmt.Println(shared.RenderKV("url", res.URL))
	}
	if res.BundleDir != "" {
		fmt.Println(shared.RenderKV("bundle", res.BundleDir))
	}
	if res.Schema != "" {
		fmt.Println(shared.RenderKV("schema", res.Schema))
	}
	if res.StartedAt != "" {
		if started, err := time.Parse(time.RFC3339, res.StartedAt); err == nil {
			uptime := time.Since(started).Round(time.Second)
			fmt.Println(shared.RenderKV("started", fmt.Sprintf("%s (up %s)", res.StartedAt, uptime)))
		}
	}

	health := shared.StatusOK.Render("ok")
	if !res.Healthy {
		health = shared.StatusError.Render("unreachable")
		if res.Errors != "" {
			health = shared.StatusError.Render(res.Errors)
		}
	}
	fmt.Println(shared.RenderKV("health", health))
}

// statusProbeClient builds the client for the live status check. Unlike
// the engine's connect loop, which owns its own polling, a one-shot
// diagnostic has no second chance: retry transient failures so a single
// dropped connection does not report a healthy bridge as unreachable.
// The probe is a GET, which the retry transport considers safe to resend.
func statusProbeClient() *http.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = statusProbeTimeout
	cfg.RetryAttempts = 2
	client, err := httpclient.New(cfg)
	if err != nil {
		return http.DefaultClient
	}
	return client
}

// probeStatusEndpoint performs one live /health/status check and reports
// health plus any error text the bridge volunteered.
func probeStatusEndpoint(ctx context.Context, baseURL string) (healthy bool, errText string) {
	probeCtx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/health/status", nil)
	if err != nil {
		return false, ""
	}
	resp, err := statusProbeClient().Do(req)
	if err != nil {
		return false, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("status %d", resp.StatusCode)
	}

	var body struct {
		Status string   `json:"status"`
		Errors []string `json:"Errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, ""
	}
	if body.Status == "ok" {
		return true, ""
	}
	return false, strings.Join(body.Errors, "; ")
}
