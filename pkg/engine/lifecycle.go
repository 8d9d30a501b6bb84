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
	"strings"
	"time"

	"github.com/outboardhq/outboard/internal/config"
	"github.com/outboardhq/outboard/internal/log"
	"github.com/outboardhq/outboard/pkg/errors"
)

// Connect brings the engine to Connected: it ensures a bridge is running
// (launching one if auto-start is enabled and nothing answers), then polls
// the bridge's status endpoint until it reports ready.
//
// The wait is bounded by the connect timeout and by ctx, whichever ends
// first. On any failure the engine returns to Disconnected.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.state != Disconnected {
		e.mu.Unlock()
		return &errors.AlreadyConnectedError{}
	}
	e.state = Connecting
	e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.connect")
	defer span.End()

	started, err := e.connect(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = Disconnected
		return err
	}
	e.state = Connected
	e.ownsBridge = e.ownsBridge || started
	e.logger.Info("connected to bridge",
		log.String("url", e.transport.BaseURL()),
		log.Bool("started_bridge", started))
	return nil
}

func (e *Engine) connect(ctx context.Context) (startedBridge bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.connectTimeout)
	defer cancel()

	if e.autoStart {
		// Locator, preflight, install, and spawn failures are
		// environmental and final; only readiness is worth polling.
		started, err := e.sup.EnsureRunning(ctx)
		if err != nil {
			return false, err
		}
		startedBridge = started
	}

	return startedBridge, e.awaitHealthy(ctx)
}

// awaitHealthy polls the status endpoint until the bridge reports ok. The
// first probe goes out immediately; a bridge that is already up connects
// without waiting out a tick.
func (e *Engine) awaitHealthy(ctx context.Context) error {
	ticker := time.NewTicker(config.DefaultPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		healthy, probeErr := e.probeStatus(ctx)
		if healthy {
			return nil
		}
		lastErr = probeErr

		select {
		case <-ctx.Done():
			return &errors.ConnectionError{
				URL:     e.transport.BaseURL(),
				Timeout: e.connectTimeout,
				Cause:   lastErr,
			}
		case <-ticker.C:
		}
	}
}

// probeStatus performs one status check. Unhealthy responses return the
// bridge's own explanation so a timeout can report the last known cause.
func (e *Engine) probeStatus(ctx context.Context) (bool, error) {
	raw, err := e.transport.Request(ctx, http.MethodGet, "/health/status", nil, nil)
	if err != nil {
		return false, err
	}

	// The bridge reports retryable startup problems in a capitalized
	// "Errors" field, a quirk of its wire format.
	var body struct {
		Status string   `json:"status"`
		Errors []string `json:"Errors"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false, fmt.Errorf("decode status response: %w", err)
	}

	if body.Status == "ok" {
		return true, nil
	}
	if len(body.Errors) > 0 {
		return false, fmt.Errorf("bridge reported: %s", strings.Join(body.Errors, "; "))
	}
	return false, fmt.Errorf("bridge status %q", body.Status)
}

// Disconnect releases the engine's session: idle transport connections are
// closed, and a bridge this engine started is stopped. Externally managed
// bridges are left running. Disconnecting a Disconnected engine is a no-op.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Disconnected:
		return nil
	case Connecting:
		return &errors.NotConnectedError{}
	}

	e.transport.Close()

	var stopErr error
	if e.ownsBridge {
		stopErr = e.sup.Stop(ctx)
		if stopErr == nil {
			e.ownsBridge = false
		}
	}

	// The session is gone regardless of how teardown went.
	e.state = Disconnected
	e.logger.Info("disconnected from bridge", log.String("url", e.transport.BaseURL()))
	return stopErr
}
