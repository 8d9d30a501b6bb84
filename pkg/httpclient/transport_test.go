package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/outboardhq/outboard/internal/tracing"
)

func TestLoggingTransport_InjectsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "outboard-test/1.0")

	req, _ := http.NewRequest("GET", server.URL, nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotUA != "outboard-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "outboard-test/1.0")
	}
}

func TestLoggingTransport_PreservesExplicitUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "outboard-test/1.0")

	req, _ := http.NewRequest("GET", server.URL, nil)
	req.Header.Set("User-Agent", "custom/2.0")
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotUA != "custom/2.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "custom/2.0")
	}
}

func TestLoggingTransport_PropagatesCorrelationID(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(tracing.HeaderCorrelationID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "outboard-test/1.0")

	id := tracing.NewCorrelationID()
	ctx := tracing.ToContext(context.Background(), id)
	req, _ := http.NewRequestWithContext(ctx, "GET", server.URL, nil)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotHeader != id.String() {
		t.Errorf("correlation header = %q, want %q", gotHeader, id)
	}
}

func TestLoggingTransport_NoCorrelationHeaderWithoutContext(t *testing.T) {
	var present bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header[tracing.HeaderCorrelationID]
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "outboard-test/1.0")

	req, _ := http.NewRequest("GET", server.URL, nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if present {
		t.Error("correlation header should not be set without a context ID")
	}
}

func TestLoggingTransport_NilBaseUsesDefault(t *testing.T) {
	transport := newLoggingTransport(nil, "outboard-test/1.0")
	if transport.base != http.DefaultTransport {
		t.Error("nil base should fall back to http.DefaultTransport")
	}
}
