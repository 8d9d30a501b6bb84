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

// Package bridgetest runs an in-process stand-in for the bridge's HTTP
// surface so engine and command tests exercise real exchanges without a
// Node runtime.
package bridgetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// QueryRecord is one observed query exchange.
type QueryRecord struct {
	Body          string
	TransactionID string
}

// Server is a scriptable fake bridge. Readiness behavior is configured up
// front; everything observed is available through accessors afterward.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	healthOKAfter int
	statusOKAfter int
	statusErrors  []string

	healthCalls  int
	statusCalls  int
	queryCalls   int
	metricsCalls int

	queries      []QueryRecord
	globalLabels string

	txSeq   int
	txState map[string]string

	registry     *prometheus.Registry
	requestsSeen prometheus.Counter
	txOpen       prometheus.Gauge
	queryBytes   prometheus.Histogram
}

// Option adjusts Server behavior before it starts serving.
type Option func(*Server)

// WithHealthOKAfter makes /health report a starting status until the nth
// poll. The default is healthy from the first poll.
func WithHealthOKAfter(n int) Option {
	return func(s *Server) { s.healthOKAfter = n }
}

// WithStatusOKAfter makes /health/status unhealthy until the nth poll.
func WithStatusOKAfter(n int) Option {
	return func(s *Server) { s.statusOKAfter = n }
}

// WithStatusErrors makes unhealthy /health/status responses carry the
// given error strings, the way the bridge reports recoverable boot
// problems.
func WithStatusErrors(errs ...string) Option {
	return func(s *Server) { s.statusErrors = errs }
}

// New starts a fake bridge and registers its shutdown with t.
func New(t *testing.T, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		healthOKAfter: 1,
		statusOKAfter: 1,
		txState:       make(map[string]string),
		registry:      prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.requestsSeen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_requests_total",
		Help: "Requests handled by the bridge.",
	})
	s.txOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_transactions_open",
		Help: "Transactions currently open.",
	})
	s.queryBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_query_bytes",
		Help:    "Query payload sizes.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 5),
	})
	s.registry.MustRegister(s.requestsSeen, s.txOpen, s.queryBytes)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.counted(s.handleHealth))
	mux.HandleFunc("GET /health/status", s.counted(s.handleStatus))
	mux.HandleFunc("POST /{$}", s.counted(s.handleQuery))
	mux.HandleFunc("POST /transaction/start", s.counted(s.handleTxStart))
	mux.HandleFunc("POST /transaction/{id}/commit", s.counted(s.handleTxFinalize("committed")))
	mux.HandleFunc("POST /transaction/{id}/rollback", s.counted(s.handleTxFinalize("rolled_back")))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /metrics/json", s.counted(s.handleMetricsJSON))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) counted(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requestsSeen.Inc()
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.healthCalls++
	ready := s.healthCalls >= s.healthOKAfter
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"status": statusWord(ready)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.statusCalls++
	ready := s.statusCalls >= s.statusOKAfter
	errs := s.statusErrors
	s.mu.Unlock()

	if !ready && len(errs) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "Errors": errs})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusWord(ready)})
}

// handleQuery echoes the payload back, the closest a protocol fake can get
// to "executed your query", and records the exchange.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}

	s.mu.Lock()
	s.queryCalls++
	s.queries = append(s.queries, QueryRecord{
		Body:          string(body),
		TransactionID: r.Header.Get("X-transaction-id"),
	})
	s.mu.Unlock()
	s.queryBytes.Observe(float64(len(body)))

	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "empty query"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleTxStart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.txSeq++
	id := fmt.Sprintf("tx_%d", s.txSeq)
	s.txState[id] = "open"
	s.mu.Unlock()
	s.txOpen.Inc()

	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleTxFinalize(terminal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		s.mu.Lock()
		state, ok := s.txState[id]
		if ok && state == "open" {
			s.txState[id] = terminal
		}
		s.mu.Unlock()

		switch {
		case !ok:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "transaction not found"})
		case state != "open":
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": fmt.Sprintf("transaction already %s", state),
			})
		default:
			s.txOpen.Dec()
			writeJSON(w, http.StatusOK, map[string]any{"status": terminal})
		}
	}
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.metricsCalls++
	s.globalLabels = r.URL.Query().Get("global_labels")
	queries := s.queryCalls
	open := 0
	for _, state := range s.txState {
		if state == "open" {
			open++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"counters": []map[string]any{
			{"key": "bridge_queries_total", "value": queries, "description": "Queries executed."},
		},
		"gauges": []map[string]any{
			{"key": "bridge_transactions_open", "value": open, "description": "Transactions currently open."},
		},
		"histograms": []map[string]any{
			{
				"key":         "bridge_query_bytes",
				"description": "Query payload sizes.",
				"value": map[string]any{
					"buckets": [][2]float64{{64, float64(queries)}},
					"sum":     0,
					"count":   queries,
				},
			},
		},
	})
}

func statusWord(ready bool) string {
	if ready {
		return "ok"
	}
	return "starting"
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// HealthCalls returns how many times /health was polled.
func (s *Server) HealthCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthCalls
}

// StatusCalls returns how many times /health/status was polled.
func (s *Server) StatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls
}

// QueryCalls returns how many queries were received.
func (s *Server) QueryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalls
}

// MetricsCalls returns how many JSON metrics fetches were received.
func (s *Server) MetricsCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsCalls
}

// LastQuery returns the most recent query exchange.
func (s *Server) LastQuery() (QueryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return QueryRecord{}, false
	}
	return s.queries[len(s.queries)-1], true
}

// GlobalLabels returns the global_labels query parameter of the most
// recent JSON metrics fetch.
func (s *Server) GlobalLabels() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalLabels
}

// TxState returns the recorded state of a transaction id: "open",
// "committed", "rolled_back", or "" when unknown.
func (s *Server) TxState(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txState[id]
}
