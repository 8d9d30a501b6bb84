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

package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/outboardhq/outboard/internal/bridgetest"
)

func findCounter(data *MetricsData, key string) (MetricValue, bool) {
	for _, c := range data.Counters {
		if c.Key == key {
			return c, true
		}
	}
	return MetricValue{}, false
}

func TestEngine_Metrics_JSON(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := eng.Query(ctx, `{"q":1}`, ""); err != nil {
			t.Fatalf("Query() error = %v", err)
		}
	}
	if _, err := eng.StartTransaction(ctx, ""); err != nil {
		t.Fatalf("StartTransaction() error = %v", err)
	}

	m, err := eng.Metrics(ctx, MetricsFormatJSON, map[string]string{"app": "crm"})
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if m.Format != MetricsFormatJSON {
		t.Errorf("Format = %q, want %q", m.Format, MetricsFormatJSON)
	}
	if m.Data == nil {
		t.Fatal("Data = nil, want a decoded document")
	}
	if m.Prometheus != "" {
		t.Errorf("Prometheus = %q, want empty for the JSON format", m.Prometheus)
	}

	queries, ok := findCounter(m.Data, "bridge_queries_total")
	if !ok {
		t.Fatalf("counter bridge_queries_total missing from %+v", m.Data.Counters)
	}
	if queries.Value != 2 {
		t.Errorf("bridge_queries_total = %v, want 2", queries.Value)
	}

	if len(m.Data.Gauges) == 0 || m.Data.Gauges[0].Value != 1 {
		t.Errorf("Gauges = %+v, want one open transaction", m.Data.Gauges)
	}
	if len(m.Data.Histograms) == 0 || m.Data.Histograms[0].Value.Count != 2 {
		t.Errorf("Histograms = %+v, want count 2", m.Data.Histograms)
	}

	if got := srv.GlobalLabels(); got != `{"app":"crm"}` {
		t.Errorf("GlobalLabels() = %q, want the encoded label set", got)
	}
}

func TestEngine_Metrics_JSON_NoLabels(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	if _, err := eng.Metrics(context.Background(), MetricsFormatJSON, nil); err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if got := srv.GlobalLabels(); got != "" {
		t.Errorf("GlobalLabels() = %q, want no parameter without labels", got)
	}
}

func TestEngine_Metrics_Prometheus(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	m, err := eng.Metrics(context.Background(), MetricsFormatPrometheus, nil)
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if m.Format != MetricsFormatPrometheus {
		t.Errorf("Format = %q, want %q", m.Format, MetricsFormatPrometheus)
	}
	if m.Data != nil {
		t.Errorf("Data = %+v, want nil for the prometheus format", m.Data)
	}
	if !strings.Contains(m.Prometheus, "bridge_requests_total") {
		t.Errorf("Prometheus output missing bridge_requests_total:\n%s", m.Prometheus)
	}
}

func TestEngine_Metrics_DegradeToEmpty(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	// A bridge that stops serving metrics must not break the caller.
	srv.Close()

	m, err := eng.Metrics(context.Background(), MetricsFormatJSON, nil)
	if err != nil {
		t.Fatalf("Metrics() error = %v, want degraded empty result", err)
	}
	if m.Data == nil {
		t.Fatal("Data = nil, want an empty document")
	}
	if len(m.Data.Counters) != 0 || len(m.Data.Gauges) != 0 || len(m.Data.Histograms) != 0 {
		t.Errorf("Data = %+v, want empty collections", m.Data)
	}
	if m.Data.Counters == nil || m.Data.Gauges == nil || m.Data.Histograms == nil {
		t.Error("empty document must carry non-nil collections")
	}

	p, err := eng.Metrics(context.Background(), MetricsFormatPrometheus, nil)
	if err != nil {
		t.Fatalf("Metrics() error = %v, want degraded empty result", err)
	}
	if p.Prometheus != "" {
		t.Errorf("Prometheus = %q, want empty", p.Prometheus)
	}
}

func TestEngine_Metrics_UnknownFormat(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	_, err := eng.Metrics(context.Background(), MetricsFormat("xml"), nil)
	if err == nil || !strings.Contains(err.Error(), "unknown metrics format") {
		t.Errorf("Metrics(xml) error = %v, want unknown-format rejection", err)
	}
}
