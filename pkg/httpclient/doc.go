// Package httpclient provides a unified HTTP client factory with consistent
// timeout, retry, and observability behavior for the outboard runtime.
//
// The package creates HTTP clients with sensible, secure defaults including:
//   - Optional retry with exponential backoff and jitter (idempotent methods only)
//   - Request logging with sanitized URLs (sensitive parameters redacted)
//   - User-Agent header injection
//   - Correlation ID propagation for cross-process tracing
//   - TLS 1.2 minimum (TLS 1.3 preferred)
//   - Connection pooling for performance
//
// # Usage
//
// Create a client with default settings:
//
//	client, err := httpclient.New(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Get("http://localhost:4466/health")
//
// Customize configuration:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "outboard-cli/2.0"
//	cfg.Timeout = 60 * time.Second
//	cfg.RetryAttempts = 5
//	client, err := httpclient.New(cfg)
//
// # Retry Behavior
//
// When RetryAttempts > 0, the client retries transient failures with
// exponential backoff:
//   - Retries HTTP 5xx server errors
//   - Retries HTTP 429 (rate limit) with Retry-After header support
//   - Retries HTTP 408 (request timeout)
//   - Retries network errors (connection refused, reset, temporary DNS failures)
//   - Does NOT retry 4xx client errors (except 408, 429)
//   - Only ever retries idempotent methods (GET, HEAD, OPTIONS)
//
// POST is never retried. Query and transaction submissions to the bridge are
// not idempotent, so retry policy for those lives with the caller, which knows
// whether a resend is safe. The engine builds its client with RetryAttempts=0
// and owns its own health-polling loop instead.
//
// # Security
//
// The package includes security features:
//   - Sensitive query parameters (tokens, passwords, connection strings) are
//     redacted from logs
//   - TLS 1.2 minimum with certificate validation enabled
//   - Connection pooling limits prevent resource exhaustion
//
// # Observability
//
// All requests emit structured logs via log/slog:
//   - Debug level: successful requests (2xx status)
//   - Warn level: failed requests (4xx/5xx status, errors)
//   - Fields: method, url (sanitized), status, duration_ms, error
//   - Correlation IDs automatically propagated when present in request context
//
// # Integration
//
// This package backs every HTTP surface of the runtime:
//   - The engine's bridge transport (retries disabled)
//   - Supervisor readiness probes
//   - CLI status and metrics commands (retries enabled)
package httpclient
