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

// Package metrics implements `outboard metrics`: fetching bridge metrics
// in either representation, optionally filtered through a jq expression.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/outboardhq/outboard/internal/commands/shared"
	"github.com/outboardhq/outboard/internal/config"
	"github.com/outboardhq/outboard/internal/jq"
	"github.com/outboardhq/outboard/pkg/engine"
)

const defaultFetchTimeout = 5 * time.Second

// NewCommand creates the metrics command.
func NewCommand() *cobra.Command {
	var (
		format  string
		jqExpr  string
		labels  []string
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Fetch bridge metrics",
		Long: `Fetch metrics from a running bridge.

The json format returns the structured counters/gauges/histograms
document; prometheus returns the raw exposition text. Global labels are
attached by the bridge to every sample it reports.

The bridge must already be running; metrics never starts one.`,
		Example: `  # Structured metrics
  outboard metrics

  # Raw prometheus exposition
  outboard metrics --format prometheus

  # Just the counter keys
  outboard metrics --jq '.counters[].key'

  # Tag every sample
  outboard metrics --label app=crm --label region=eu`,
		RunE: func(cmd *cobra.Command, args []string) error {
			labelMap, err := parseLabels(labels)
			if err != nil {
				return err
			}

			metricsFormat := engine.MetricsFormat(format)
			if metricsFormat != engine.MetricsFormatJSON && metricsFormat != engine.MetricsFormatPrometheus {
				return fmt.Errorf("unknown metrics format %q (json or prometheus)", format)
			}
			if jqExpr != "" {
				if metricsFormat != engine.MetricsFormatJSON {
					return fmt.Errorf("--jq only applies to --format json")
				}
				if err := jq.Validate(jqExpr); err != nil {
					return err
				}
			}

			cfg, err := config.Load(shared.GetConfigPath())
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Bridge.URL = url
			}

			return runMetrics(cmd.Context(), cfg, metricsFormat, jqExpr, labelMap, timeout)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or prometheus")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "jq expression applied to the json document")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "Global label key=value (repeatable)")
	cmd.Flags().StringVar(&url, "url", "", "Bridge URL (default from config/environment)")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultFetchTimeout, "Time to wait for the bridge")

	return cmd
}

func runMetrics(ctx context.Context, cfg *config.Config, format engine.MetricsFormat, jqExpr string, labels map[string]string, timeout time.Duration) error {
	eng, err := engine.New(
		engine.WithServiceURL(cfg.Bridge.URL),
		engine.WithAutoStart(false),
		engine.WithConnectTimeout(timeout),
		engine.WithLogger(shared.NewLogger(cfg.Log.Level, cfg.Log.Format)),
	)
	if err != nil {
		return err
	}

	if err := eng.Connect(ctx); err != nil {
		return shared.ClassifyExitError(err)
	}
	defer eng.Disconnect(context.Background())

	m, err := eng.Metrics(ctx, format, labels)
	if err != nil {
		return err
	}

	if format == engine.MetricsFormatPrometheus {
		fmt.Print(m.Prometheus)
		if m.Prometheus != "" && !strings.HasSuffix(m.Prometheus, "\n") {
			fmt.Println()
		}
		return nil
	}

	return printJSON(ctx, m, jqExpr)
}

func printJSON(ctx context.Context, m *engine.Metrics, jqExpr string) error {
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}

	var doc any = json.RawMessage(raw)
	if jqExpr != "" {
		result, err := jq.NewExecutor(0, 0).Apply(ctx, jqExpr, raw)
		if err != nil {
			return err
		}
		doc = result
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// parseLabels turns repeated key=value flags into a label map.
func parseLabels(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	labels := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --label %q, want key=value", pair)
		}
		labels[key] = value
	}
	return labels, nil
}
