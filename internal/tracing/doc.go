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

/*
Package tracing provides correlation IDs and optional OpenTelemetry tracing
for the Outboard runtime.

Every exchange with the bridge carries a request ID, and callers can scope a
whole operation (connect, a transaction) under one correlation ID so that
client logs and bridge logs line up:

	ctx = tracing.ToContext(ctx, tracing.NewCorrelationID())

	// Outbound requests pick the ID up from the context.
	tracing.InjectIntoRequest(ctx, req)

Span export is off by default. Setting OUTBOARD_TRACE=stdout installs a
stdout exporter so engine spans (connect, query, transaction, metrics) can be
inspected without any collector infrastructure:

	provider, err := tracing.SetupFromEnv("outboard", version)
	defer provider.Shutdown(ctx)

Spans are created through the shared tracer:

	ctx, span := tracing.Tracer().Start(ctx, "engine.connect")
	defer span.End()
*/
package tracing
