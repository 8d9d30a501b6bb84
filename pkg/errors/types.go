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

package errors

import (
	"fmt"
	"strings"
	"time"
)

// LocatorNotFoundError reports that no bridge bundle could be found.
// It records every location that was searched so the failure message
// can show the complete search order.
type LocatorNotFoundError struct {
	// Searched lists every candidate path that was checked, in order.
	Searched []string
}

// Error implements the error interface.
func (e *LocatorNotFoundError) Error() string {
	return fmt.Sprintf("bridge bundle not found (searched %d locations)", len(e.Searched))
}

// Remediation returns actionable guidance for resolving the error.
func (e *LocatorNotFoundError) Remediation() string {
	var b strings.Builder
	b.WriteString("Searched:\n")
	for _, p := range e.Searched {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	b.WriteString("Set OUTBOARD_BRIDGE_DIR to the bridge bundle directory, copy the bundle into your project, " +
		"or start the bridge yourself and set OUTBOARD_BRIDGE_AUTO_START=false.")
	return b.String()
}

// RuntimeUnavailableError reports that the Node.js runtime required to run
// the bridge is missing, broken, or too old.
type RuntimeUnavailableError struct {
	// Runtime is the binary that was probed (e.g., "node")
	Runtime string

	// Reason explains why the runtime cannot be used
	Reason string

	// Detected is the version string reported by the binary, if any
	Detected string

	// MinMajor is the minimum supported major version, when the failure
	// is a version floor rather than a missing binary
	MinMajor int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *RuntimeUnavailableError) Error() string {
	if e.MinMajor > 0 && e.Detected != "" {
		return fmt.Sprintf("%s %s is too old: version %d or newer is required", e.Runtime, e.Detected, e.MinMajor)
	}
	return fmt.Sprintf("%s runtime unavailable: %s", e.Runtime, e.Reason)
}

// Remediation returns actionable guidance for resolving the error.
func (e *RuntimeUnavailableError) Remediation() string {
	if e.MinMajor > 0 && e.Detected != "" {
		return fmt.Sprintf("Upgrade Node.js to version %d or newer (https://nodejs.org), or run the bridge "+
			"somewhere that has it and set OUTBOARD_BRIDGE_URL.", e.MinMajor)
	}
	return "Install Node.js (https://nodejs.org) and make sure it is on your PATH, or start the bridge " +
		"yourself and set OUTBOARD_BRIDGE_AUTO_START=false."
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *RuntimeUnavailableError) Unwrap() error {
	return e.Cause
}

// PackageManagerUnavailableError reports that the package manager needed to
// install the bridge's dependencies is missing or broken.
type PackageManagerUnavailableError struct {
	// Tool is the binary that was probed (e.g., "npm")
	Tool string

	// Reason explains why the tool cannot be used
	Reason string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *PackageManagerUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.Tool, e.Reason)
}

// Remediation returns actionable guidance for resolving the error.
func (e *PackageManagerUnavailableError) Remediation() string {
	return fmt.Sprintf("Install %s and make sure it is on your PATH; it ships with Node.js "+
		"(https://nodejs.org). You can also run `%s install` in the bridge directory once by hand.", e.Tool, e.Tool)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *PackageManagerUnavailableError) Unwrap() error {
	return e.Cause
}

// DependencyInstallError reports that installing the bridge's dependencies
// failed. Stderr carries the tail of the installer's output.
type DependencyInstallError struct {
	// Dir is the bridge bundle directory the install ran in
	Dir string

	// Stderr is the captured installer output
	Stderr string

	// Cause is the underlying error (exit status, timeout)
	Cause error
}

// Error implements the error interface.
func (e *DependencyInstallError) Error() string {
	return fmt.Sprintf("installing bridge dependencies in %s failed: %v", e.Dir, e.Cause)
}

// Remediation returns actionable guidance for resolving the error.
func (e *DependencyInstallError) Remediation() string {
	msg := fmt.Sprintf("Run `npm install` in %s to see the full installer output.", e.Dir)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg = fmt.Sprintf("%s Installer output:\n%s", msg, tail)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *DependencyInstallError) Unwrap() error {
	return e.Cause
}

// ProcessSpawnError reports that the bridge process could not be started,
// or that it exited while we were waiting for it to become ready.
type ProcessSpawnError struct {
	// Command is the command line that was run
	Command string

	// Dir is the working directory the process was started in
	Dir string

	// Exited is true when the process started and then exited before
	// becoming ready; ExitCode and StderrTail are meaningful in that case
	Exited bool

	// ExitCode is the exit status of the dead process
	ExitCode int

	// StderrTail is the last portion of the process's stderr output
	StderrTail string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ProcessSpawnError) Error() string {
	if e.Exited {
		return fmt.Sprintf("bridge process exited with code %d during startup", e.ExitCode)
	}
	return fmt.Sprintf("could not start bridge process %q: %v", e.Command, e.Cause)
}

// Remediation returns actionable guidance for resolving the error.
func (e *ProcessSpawnError) Remediation() string {
	if e.Exited {
		msg := "The bridge started and then crashed. Check your schema and datasource configuration."
		if tail := strings.TrimSpace(e.StderrTail); tail != "" {
			msg = fmt.Sprintf("%s Process output:\n%s", msg, tail)
		}
		return msg
	}
	return fmt.Sprintf("Make sure %q works in %s (try it by hand), or start the bridge yourself "+
		"and set OUTBOARD_BRIDGE_AUTO_START=false.", e.Command, e.Dir)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ProcessSpawnError) Unwrap() error {
	return e.Cause
}

// ReadinessTimeoutError reports that the bridge process did not become
// healthy before the startup deadline.
type ReadinessTimeoutError struct {
	// Timeout is the startup deadline that elapsed
	Timeout time.Duration

	// LastErr is the most recent probe failure
	LastErr error

	// StderrTail is the last portion of the process's stderr output, when owned
	StderrTail string
}

// Error implements the error interface.
func (e *ReadinessTimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("bridge did not become ready within %v: %v", e.Timeout, e.LastErr)
	}
	return fmt.Sprintf("bridge did not become ready within %v", e.Timeout)
}

// Remediation returns actionable guidance for resolving the error.
func (e *ReadinessTimeoutError) Remediation() string {
	msg := "The bridge is starting slower than expected. Check `outboard bridge logs`, or raise the " +
		"startup deadline if the machine is just slow."
	if tail := strings.TrimSpace(e.StderrTail); tail != "" {
		msg = fmt.Sprintf("%s Process output:\n%s", msg, tail)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ReadinessTimeoutError) Unwrap() error {
	return e.LastErr
}

// PortInUseError reports that a detached start found the endpoint already
// serving connections without a PID file claiming it.
type PortInUseError struct {
	// Port is the TCP port that was found occupied
	Port int

	// URL is the full endpoint that answered
	URL string
}

// Error implements the error interface.
func (e *PortInUseError) Error() string {
	return fmt.Sprintf("something is already listening at %s", e.URL)
}

// Remediation returns actionable guidance for resolving the error.
func (e *PortInUseError) Remediation() string {
	return fmt.Sprintf("Another bridge (or an unrelated program) holds port %d. Use the running instance, "+
		"stop it, or point OUTBOARD_BRIDGE_URL at a free port.", e.Port)
}

// ConnectionError reports that the engine could not reach a healthy bridge
// within the connect timeout. It wraps the last transport failure observed.
type ConnectionError struct {
	// URL is the bridge endpoint that was polled
	URL string

	// Timeout is the connect deadline that elapsed
	Timeout time.Duration

	// Cause is the last transport error seen before giving up
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("could not connect to the bridge at %s within %v: %v", e.URL, e.Timeout, e.Cause)
	}
	return fmt.Sprintf("could not connect to the bridge at %s within %v", e.URL, e.Timeout)
}

// Remediation returns actionable guidance for resolving the error.
func (e *ConnectionError) Remediation() string {
	return fmt.Sprintf("Check that the bridge is running and reachable at %s. If it listens somewhere else, "+
		"set OUTBOARD_BRIDGE_URL.", e.URL)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// AlreadyConnectedError reports a Connect call on an engine that is already
// connected or connecting.
type AlreadyConnectedError struct{}

// Error implements the error interface.
func (e *AlreadyConnectedError) Error() string {
	return "already connected to the outboard bridge"
}

// Remediation returns actionable guidance for resolving the error.
func (e *AlreadyConnectedError) Remediation() string {
	return "Call Disconnect before connecting again, or share the connected engine instead."
}

// NotConnectedError reports an operation that requires a connection on an
// engine that is disconnected.
type NotConnectedError struct{}

// Error implements the error interface.
func (e *NotConnectedError) Error() string {
	return "not connected to the outboard bridge"
}

// Remediation returns actionable guidance for resolving the error.
func (e *NotConnectedError) Remediation() string {
	return "Call Connect before running queries or transactions."
}

// TransportError represents a failed HTTP exchange with the bridge: a
// connection-level failure, a non-2xx response, or an unparseable body.
type TransportError struct {
	// Method and Path identify the request that failed
	Method string
	Path   string

	// StatusCode is the HTTP status, when a response was received
	StatusCode int

	// Body is a snippet of the response body, when one was received
	Body string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		msg := fmt.Sprintf("%s %s returned HTTP %d", e.Method, e.Path, e.StatusCode)
		if e.Body != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Body)
		}
		return msg
	}
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.Path, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "bridge.url")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
