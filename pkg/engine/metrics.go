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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/outboardhq/outboard/internal/log"
)

// MetricsFormat selects the bridge metrics representation.
type MetricsFormat string

const (
	// MetricsFormatJSON returns structured counters, gauges, and histograms.
	MetricsFormatJSON MetricsFormat = "json"

	// MetricsFormatPrometheus returns the raw exposition text.
	MetricsFormatPrometheus MetricsFormat = "prometheus"
)

// MetricValue is one named counter or gauge sample.
type MetricValue struct {
	Key         string            `json:"key"`
	Labels      map[string]string `json:"labels,omitempty"`
	Value       float64           `json:"value"`
	Description string            `json:"description,omitempty"`
}

// HistogramValue carries a histogram's buckets as [upper bound, count]
// pairs alongside its sum and total count.
type HistogramValue struct {
	Buckets [][2]float64 `json:"buckets"`
	Sum     float64      `json:"sum"`
	Count   uint64       `json:"count"`
}

// MetricHistogram is one named histogram sample.
type MetricHistogram struct {
	Key         string            `json:"key"`
	Labels      map[string]string `json:"labels,omitempty"`
	Value       HistogramValue    `json:"value"`
	Description string            `json:"description,omitempty"`
}

// MetricsData is the bridge's structured metrics document.
type MetricsData struct {
	Counters   []MetricValue     `json:"counters"`
	Gauges     []MetricValue     `json:"gauges"`
	Histograms []MetricHistogram `json:"histograms"`
}

// Metrics is one metrics fetch in the requested format: Data for JSON,
// Prometheus for exposition text.
type Metrics struct {
	Format     MetricsFormat
	Data       *MetricsData
	Prometheus string
}

// Metrics fetches bridge metrics. Global labels are attached to every
// sample the bridge reports. Metrics are diagnostics, not data: transport
// failures degrade to an empty result of the requested shape instead of
// erroring, so metrics collection never breaks an application path.
func (e *Engine) Metrics(ctx context.Context, format MetricsFormat, labels map[string]string) (*Metrics, error) {
	if err := e.requireConnected(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "engine.metrics")
	defer span.End()

	query, err := globalLabelsQuery(labels)
	if err != nil {
		return nil, err
	}

	switch format {
	case MetricsFormatJSON:
		return e.metricsJSON(ctx, query), nil
	case MetricsFormatPrometheus:
		return e.metricsPrometheus(ctx, query), nil
	default:
		return nil, fmt.Errorf("unknown metrics format %q", format)
	}
}

func (e *Engine) metricsJSON(ctx context.Context, query string) *Metrics {
	empty := &Metrics{
		Format: MetricsFormatJSON,
		Data: &MetricsData{
			Counters:   []MetricValue{},
			Gauges:     []MetricValue{},
			Histograms: []MetricHistogram{},
		},
	}

	raw, err := e.transport.Request(ctx, http.MethodGet, "/metrics/json"+query, nil, nil)
	if err != nil {
		e.logger.Warn("metrics fetch failed", log.Error(err))
		return empty
	}

	var data MetricsData
	if err := json.Unmarshal(raw, &data); err != nil {
		e.logger.Warn("metrics response unparseable", log.Error(err))
		return empty
	}

	return &Metrics{Format: MetricsFormatJSON, Data: &data}
}

func (e *Engine) metricsPrometheus(ctx context.Context, query string) *Metrics {
	text, err := e.transport.RequestText(ctx, http.MethodGet, "/metrics"+query)
	if err != nil {
		e.logger.Warn("metrics fetch failed", log.Error(err))
		return &Metrics{Format: MetricsFormatPrometheus}
	}
	return &Metrics{Format: MetricsFormatPrometheus, Prometheus: text}
}

func globalLabelsQuery(labels map[string]string) (string, error) {
	if len(labels) == 0 {
		return "", nil
	}
	enc, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encode global labels: %w", err)
	}
	return "?global_labels=" + url.QueryEscape(string(enc)), nil
}
