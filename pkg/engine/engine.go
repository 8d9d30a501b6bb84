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
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/outboardhq/outboard/internal/bridge"
	"github.com/outboardhq/outboard/internal/config"
	"github.com/outboardhq/outboard/internal/log"
	"github.com/outboardhq/outboard/internal/transport"
	"github.com/outboardhq/outboard/pkg/httpclient"
)

// ConnectionState is the engine's lifecycle phase.
type ConnectionState int

const (
	// Disconnected engines accept Connect and nothing else.
	Disconnected ConnectionState = iota

	// Connecting is the transient phase while Connect runs.
	Connecting

	// Connected engines accept queries, transactions, and metrics.
	Connected
)

var stateNames = map[ConnectionState]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
}

func (s ConnectionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TransactionID identifies an interactive transaction issued by the bridge.
type TransactionID string

// Datasource overrides one named datasource's connection URL for the
// bridge's lifetime.
type Datasource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Engine is the client runtime: it ensures a bridge is available and turns
// logical operations into HTTP exchanges with it.
//
// Lifecycle calls (Connect, Disconnect) are serialized; operations on a
// Connected engine are safe to call concurrently.
type Engine struct {
	url            string
	autoStart      bool
	bridgeDir      string
	schemaPath     string
	datasources    string
	connectTimeout time.Duration
	logQueries     bool
	logger         *slog.Logger
	httpCfg        *httpclient.Config
	tracer         trace.Tracer

	transport *transport.Client
	sup       *bridge.Supervisor

	mu         sync.Mutex
	state      ConnectionState
	ownsBridge bool
}

// Option configures an Engine at construction.
type Option func(*Engine) error

// WithServiceURL sets the bridge endpoint. Defaults to OUTBOARD_BRIDGE_URL
// or http://localhost:4466.
func WithServiceURL(url string) Option {
	return func(e *Engine) error {
		e.url = url
		return nil
	}
}

// WithAutoStart controls whether Connect may launch a bridge when none is
// reachable. Defaults to true unless OUTBOARD_BRIDGE_AUTO_START disables it.
func WithAutoStart(enabled bool) Option {
	return func(e *Engine) error {
		e.autoStart = enabled
		return nil
	}
}

// WithBridgeDir pins the bridge bundle directory, skipping discovery.
func WithBridgeDir(dir string) Option {
	return func(e *Engine) error {
		e.bridgeDir = dir
		return nil
	}
}

// WithSchemaPath pins the schema file handed to a spawned bridge.
func WithSchemaPath(path string) Option {
	return func(e *Engine) error {
		e.schemaPath = path
		return nil
	}
}

// WithConnectTimeout bounds Connect, including any auto-start work.
func WithConnectTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("connect timeout must be positive, got %v", d)
		}
		e.connectTimeout = d
		return nil
	}
}

// WithDatasources overrides datasource URLs for a spawned bridge.
func WithDatasources(ds ...Datasource) Option {
	return func(e *Engine) error {
		if len(ds) == 0 {
			return nil
		}
		enc, err := json.Marshal(ds)
		if err != nil {
			return fmt.Errorf("encode datasources: %w", err)
		}
		e.datasources = string(enc)
		return nil
	}
}

// WithLogger routes engine diagnostics to the given logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}

// WithHTTPConfig tunes the underlying HTTP client.
func WithHTTPConfig(cfg httpclient.Config) Option {
	return func(e *Engine) error {
		e.httpCfg = &cfg
		return nil
	}
}

// WithLogQueries emits query payloads at trace level. Payloads may contain
// data; leave this off outside development.
func WithLogQueries(enabled bool) Option {
	return func(e *Engine) error {
		e.logQueries = enabled
		return nil
	}
}

// New builds an Engine. Defaults come from the environment; options win
// over both. The endpoint is validated here and immutable afterward.
func New(opts ...Option) (*Engine, error) {
	cfg := config.FromEnv()

	e := &Engine{
		url:            cfg.Bridge.URL,
		autoStart:      cfg.Bridge.AutoStart,
		bridgeDir:      cfg.Bridge.Dir,
		schemaPath:     cfg.Bridge.SchemaPath,
		connectTimeout: cfg.Engine.ConnectTimeout,
		logQueries:     cfg.Engine.LogQueries,
		logger:         slog.Default(),
		state:          Disconnected,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	e.logger = e.logger.With(log.String(log.ComponentKey, "engine"))
	e.tracer = otel.Tracer("outboard/engine")

	transportOpts := []transport.Option{transport.WithLogger(e.logger)}
	if e.httpCfg != nil {
		transportOpts = append(transportOpts, transport.WithHTTPConfig(*e.httpCfg))
	}
	client, err := transport.New(e.url, transportOpts...)
	if err != nil {
		return nil, err
	}
	e.transport = client

	// The endpoint never changes, so one supervisor serves every
	// Connect; its owned-process tracking survives reconnects.
	e.sup = bridge.NewSupervisor(bridge.Options{
		URL:         client.BaseURL(),
		BundleDir:   e.bridgeDir,
		SchemaPath:  e.schemaPath,
		Datasources: e.datasources,
		Logger:      e.logger,
	})

	return e, nil
}

// State returns the engine's current lifecycle phase.
func (e *Engine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ServiceURL returns the normalized bridge endpoint.
func (e *Engine) ServiceURL() string {
	return e.transport.BaseURL()
}
