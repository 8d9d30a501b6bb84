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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrProbeTimeout is returned when the endpoint never becomes healthy
// before the context deadline.
var ErrProbeTimeout = errors.New("health probe timeout")

// Prober polls an HTTP health endpoint at a fixed interval. The bridge
// answers its health route as soon as the listener is up, so a short
// constant interval beats backoff here: startup latency is dominated by
// node boot time, not by load on the endpoint.
type Prober struct {
	endpoint string
	client   *http.Client
	interval time.Duration
}

// ProbeResult is the outcome of a single probe. Body carries up to
// maxProbeBody bytes of the response so callers can check markers beyond
// the status code.
type ProbeResult struct {
	Healthy    bool
	StatusCode int
	Body       []byte
	Latency    time.Duration
	Err        error
}

// maxProbeBody bounds how much of a health response is retained. Health
// payloads are a few fields; anything larger is not a health payload.
const maxProbeBody = 4096

// NewProber creates a prober for the given endpoint.
// Defaults: 100ms interval, 5s per-request timeout.
func NewProber(endpoint string) *Prober {
	return &Prober{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		interval: 100 * time.Millisecond,
	}
}

// WithInterval sets the polling interval.
func (p *Prober) WithInterval(d time.Duration) *Prober {
	p.interval = d
	return p
}

// WithHTTPClient sets a custom HTTP client.
func (p *Prober) WithHTTPClient(client *http.Client) *Prober {
	p.client = client
	return p
}

// Probe performs a single health check.
func (p *Prober) Probe(ctx context.Context) ProbeResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return ProbeResult{Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := p.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		return ProbeResult{
			Latency: latency,
			Err:     fmt.Errorf("request failed: %w", err),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))

	return ProbeResult{
		Healthy:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    latency,
	}
}

// WaitUntilHealthy polls until the endpoint answers 2xx or ctx is done.
// The caller supplies the deadline through ctx. Returns the number of
// attempts made; on timeout the returned error wraps ErrProbeTimeout and
// carries the last probe failure.
func (p *Prober) WaitUntilHealthy(ctx context.Context) (int, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempts := 0
	var lastErr error

	for {
		attempts++
		result := p.Probe(ctx)
		if result.Healthy {
			return attempts, nil
		}

		if result.Err != nil {
			lastErr = result.Err
		} else {
			lastErr = fmt.Errorf("endpoint returned HTTP %d", result.StatusCode)
		}

		select {
		case <-ctx.Done():
			return attempts, fmt.Errorf("%w after %d attempts: %v", ErrProbeTimeout, attempts, lastErr)
		case <-ticker.C:
		}
	}
}
