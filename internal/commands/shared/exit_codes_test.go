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
	"testing"
	"time"

	pkgerrors "github.com/outboardhq/outboard/pkg/errors"
)

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := &ExitError{Code: ExitFailure, Message: "operation failed", Cause: cause}

	if got := err.Error(); got != "operation failed: boom" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should reach the cause")
	}

	bare := &ExitError{Code: ExitFailure, Message: "operation failed"}
	if got := bare.Error(); got != "operation failed" {
		t.Errorf("Error() = %q, want message only without a cause", got)
	}
}

func TestClassifyExitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "locator failure is environmental",
			err:      &pkgerrors.LocatorNotFoundError{Searched: []string{"/tmp"}},
			wantCode: ExitEnvironment,
		},
		{
			name:     "missing runtime is environmental",
			err:      &pkgerrors.RuntimeUnavailableError{Runtime: "node", Reason: "not found in PATH"},
			wantCode: ExitEnvironment,
		},
		{
			name:     "install failure is environmental",
			err:      &pkgerrors.DependencyInstallError{Dir: "/tmp/bundle"},
			wantCode: ExitEnvironment,
		},
		{
			name:     "wrapped locator failure still classified",
			err:      fmt.Errorf("starting: %w", &pkgerrors.LocatorNotFoundError{}),
			wantCode: ExitEnvironment,
		},
		{
			name:     "spawn failure means bridge unavailable",
			err:      &pkgerrors.ProcessSpawnError{Command: "npm run start"},
			wantCode: ExitBridgeUnavailable,
		},
		{
			name:     "readiness timeout means bridge unavailable",
			err:      &pkgerrors.ReadinessTimeoutError{Timeout: time.Second},
			wantCode: ExitBridgeUnavailable,
		},
		{
			name:     "connection failure means bridge unavailable",
			err:      &pkgerrors.ConnectionError{URL: "http://localhost:4466"},
			wantCode: ExitBridgeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyExitError(tt.err)

			var exitErr *ExitError
			if !errors.As(classified, &exitErr) {
				t.Fatalf("ClassifyExitError() = %T, want *ExitError", classified)
			}
			if exitErr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", exitErr.Code, tt.wantCode)
			}
			// The original error must survive for errors.As callers.
			if !errors.Is(classified, tt.err) && exitErr.Cause == nil {
				t.Error("classified error lost its cause")
			}
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		if got := ClassifyExitError(nil); got != nil {
			t.Errorf("ClassifyExitError(nil) = %v", got)
		}
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		plain := errors.New("something else")
		if got := ClassifyExitError(plain); got != plain {
			t.Errorf("ClassifyExitError() = %v, want the error unchanged", got)
		}
	})
}
