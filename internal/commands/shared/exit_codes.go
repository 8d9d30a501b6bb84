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

package shared

import (
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/outboardhq/outboard/pkg/errors"
)

// Exit codes for the outboard CLI
const (
	ExitSuccess = 0
	ExitFailure = 1
	// ExitEnvironment covers locator, preflight, and install failures:
	// the machine is missing something, not the invocation.
	ExitEnvironment = 2
	// ExitBridgeUnavailable covers a bridge that could not be reached
	// or did not become ready.
	ExitBridgeUnavailable = 3
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewEnvironmentError wraps a failure caused by the machine's setup:
// missing bundle, missing node, failed install.
func NewEnvironmentError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitEnvironment, Message: msg, Cause: cause}
}

// NewBridgeUnavailableError wraps a failure to reach or start the bridge.
func NewBridgeUnavailableError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitBridgeUnavailable, Message: msg, Cause: cause}
}

// ClassifyExitError maps known runtime errors onto exit codes so scripts can
// tell "fix your machine" from "bridge is down" without parsing text.
func ClassifyExitError(err error) error {
	if err == nil {
		return nil
	}

	var (
		locator   *pkgerrors.LocatorNotFoundError
		runtime   *pkgerrors.RuntimeUnavailableError
		pkgmgr    *pkgerrors.PackageManagerUnavailableError
		install   *pkgerrors.DependencyInstallError
		spawn     *pkgerrors.ProcessSpawnError
		readiness *pkgerrors.ReadinessTimeoutError
		conn      *pkgerrors.ConnectionError
	)
	switch {
	case errors.As(err, &locator), errors.As(err, &runtime),
		errors.As(err, &pkgmgr), errors.As(err, &install):
		return &ExitError{Code: ExitEnvironment, Message: "environment check failed", Cause: err}
	case errors.As(err, &spawn), errors.As(err, &readiness), errors.As(err, &conn):
		return &ExitError{Code: ExitBridgeUnavailable, Message: "bridge unavailable", Cause: err}
	default:
		return err
	}
}

// HandleExitError prints the error (with remediation when the chain offers
// any) and exits with the error's code, defaulting to ExitFailure.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	if remediation := pkgerrors.RemediationFor(err); remediation != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", remediation)
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(ExitFailure)
}
