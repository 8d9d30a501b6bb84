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

package errors_test

import (
	"testing"

	outerrors "github.com/outboardhq/outboard/pkg/errors"
)

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if got := outerrors.Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
	})

	t.Run("adds context and preserves cause", func(t *testing.T) {
		cause := outerrors.New("underlying")
		err := outerrors.Wrap(cause, "resolving schema")

		if got := err.Error(); got != "resolving schema: underlying" {
			t.Errorf("Error() = %q", got)
		}
		if !outerrors.Is(err, cause) {
			t.Error("wrapped error should match cause via Is")
		}
	})
}

func TestWrapf(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if got := outerrors.Wrapf(nil, "reading %s", "state"); got != nil {
			t.Errorf("Wrapf(nil) = %v, want nil", got)
		}
	})

	t.Run("formats context", func(t *testing.T) {
		cause := outerrors.New("permission denied")
		err := outerrors.Wrapf(cause, "reading bridge state %s", "/run/outboard/bridge.json")

		want := "reading bridge state /run/outboard/bridge.json: permission denied"
		if got := err.Error(); got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})
}

func TestAs(t *testing.T) {
	err := outerrors.Wrap(&outerrors.TransportError{Method: "GET", Path: "/health"}, "probing")

	var transportErr *outerrors.TransportError
	if !outerrors.As(err, &transportErr) {
		t.Fatal("As should find TransportError through Wrap")
	}
	if transportErr.Path != "/health" {
		t.Errorf("Path = %q", transportErr.Path)
	}
}

func TestUnwrap(t *testing.T) {
	cause := outerrors.New("root")
	err := outerrors.Wrap(cause, "outer")

	if got := outerrors.Unwrap(err); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}
