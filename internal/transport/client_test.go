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

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/outboardhq/outboard/internal/tracing"
	"github.com/outboardhq/outboard/pkg/errors"
)

func TestNew_NormalizesBaseURL(t *testing.T) {
	c, err := New("http://localhost:4466/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if got := c.BaseURL(); got != "http://localhost:4466" {
		t.Errorf("BaseURL() = %q, want %q", got, "http://localhost:4466")
	}
}

func TestNew_RejectsBadURLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"unsupported scheme", "ftp://localhost:4466"},
		{"missing host", "http://"},
		{"garbage", "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.url)
			if err == nil {
				t.Fatalf("New(%q) succeeded, want error", tt.url)
			}
			var cfgErr *errors.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("New(%q) error = %T, want *ConfigError", tt.url, err)
			}
		})
	}
}

func TestClient_Request_JSONExchange(t *testing.T) {
	var gotBody []byte
	var gotContentType, gotTxHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/" {
			t.Errorf("path = %s, want /", r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		gotTxHeader = r.Header.Get("X-transaction-id")
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		gotBody = body

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"findManyUser":[]}}`))
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	header := http.Header{}
	header.Set("X-transaction-id", "tx_123")

	payload := []byte(`{"query":"{ findManyUser }"}`)
	raw, err := c.Request(context.Background(), http.MethodPost, "/", payload, header)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if string(gotBody) != string(payload) {
		t.Errorf("server saw body %q, want %q", gotBody, payload)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotTxHeader != "tx_123" {
		t.Errorf("X-transaction-id = %q, want tx_123", gotTxHeader)
	}

	var decoded struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("response not decodable: %v", err)
	}
	if _, ok := decoded.Data["findManyUser"]; !ok {
		t.Error("response missing expected data key")
	}
}

func TestClient_Request_InjectsRequestID(t *testing.T) {
	seen := make([]string, 0, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(tracing.HeaderRequestID))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	for i := 0; i < 2; i++ {
		if _, err := c.Request(context.Background(), http.MethodGet, "/health", nil, nil); err != nil {
			t.Fatalf("Request() error = %v", err)
		}
	}

	if len(seen) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(seen))
	}
	for i, id := range seen {
		if id == "" {
			t.Errorf("request %d missing %s header", i, tracing.HeaderRequestID)
		}
	}
	if seen[0] == seen[1] {
		t.Error("request IDs should be unique per request")
	}
}

func TestClient_Request_PropagatesCorrelationID(t *testing.T) {
	var gotCorrelation string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCorrelation = r.Header.Get(tracing.HeaderCorrelationID)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	id := tracing.NewCorrelationID()
	ctx := tracing.ToContext(context.Background(), id)

	if _, err := c.Request(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if gotCorrelation != id.String() {
		t.Errorf("correlation header = %q, want %q", gotCorrelation, id)
	}
}

func TestClient_Request_HTTPErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"errors":[{"error":"invalid query"}]}`))
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	_, err = c.Request(context.Background(), http.MethodPost, "/", []byte(`{}`), nil)
	if err == nil {
		t.Fatal("Request() error = nil, want TransportError")
	}

	var tErr *errors.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %T, want *TransportError", err)
	}
	if tErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", tErr.StatusCode)
	}
	if !strings.Contains(tErr.Body, "invalid query") {
		t.Errorf("Body = %q, want it to contain the bridge error", tErr.Body)
	}
	if tErr.Method != http.MethodPost || tErr.Path != "/" {
		t.Errorf("error identifies %s %s, want POST /", tErr.Method, tErr.Path)
	}
}

func TestClient_Request_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	_, err = c.Request(context.Background(), http.MethodGet, "/health", nil, nil)
	if err == nil {
		t.Fatal("Request() error = nil, want TransportError")
	}

	var tErr *errors.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %T, want *TransportError", err)
	}
	if tErr.Cause == nil {
		t.Error("TransportError.Cause = nil, want the connection error")
	}
	if tErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for connection failure", tErr.StatusCode)
	}
}

func TestClient_Request_RejectsMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("EADDRINUSE: port already taken"))
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	_, err = c.Request(context.Background(), http.MethodGet, "/health/status", nil, nil)
	if err == nil {
		t.Fatal("Request() error = nil, want TransportError")
	}

	var tErr *errors.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %T, want *TransportError", err)
	}
	if tErr.Cause == nil || !strings.Contains(tErr.Cause.Error(), "not valid JSON") {
		t.Errorf("Cause = %v, want JSON validity error", tErr.Cause)
	}
}

func TestClient_RequestText(t *testing.T) {
	const metrics = "# HELP outboard_queries_total Total queries.\noutboard_queries_total 42\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			t.Errorf("path = %s, want /metrics", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(metrics))
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	got, err := c.RequestText(context.Background(), http.MethodGet, "/metrics")
	if err != nil {
		t.Fatalf("RequestText() error = %v", err)
	}
	if got != metrics {
		t.Errorf("RequestText() = %q, want %q", got, metrics)
	}
}

func TestClient_Close_Idempotent(t *testing.T) {
	c, err := New("http://localhost:4466")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c.Close()
	c.Close() // must not panic
}
