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

package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for runtime spans.
const TracerName = "github.com/outboardhq/outboard"

// Tracer returns the runtime tracer from the globally installed provider.
// Library code uses this without caring whether an SDK was wired: with no
// provider installed the returned tracer is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Provider owns an installed OpenTelemetry SDK tracer provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewStdoutProvider installs a tracer provider that pretty-prints spans to the
// given writer (os.Stderr when nil). It is meant for CLI debugging via
// OUTBOARD_TRACE=stdout; the engine library never installs an SDK itself.
func NewStdoutProvider(serviceName, version string, w io.Writer) (*Provider, error) {
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}

	// Empty schema URL avoids merge conflicts with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// SetupFromEnv installs a provider when OUTBOARD_TRACE asks for one.
// Returns nil when tracing is not requested.
func SetupFromEnv(serviceName, version string) (*Provider, error) {
	switch os.Getenv("OUTBOARD_TRACE") {
	case "stdout", "console":
		return NewStdoutProvider(serviceName, version, os.Stderr)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported OUTBOARD_TRACE value %q (only \"stdout\")", os.Getenv("OUTBOARD_TRACE"))
	}
}

// Shutdown flushes any pending spans and releases resources.
// Safe to call on a nil provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
