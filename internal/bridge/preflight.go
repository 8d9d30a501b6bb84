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

package bridge

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/outboardhq/outboard/pkg/errors"
)

const (
	// MinNodeMajor is the oldest Node.js major version the bridge bundle
	// supports.
	MinNodeMajor = 18

	// probeTimeout bounds each --version invocation. A healthy runtime
	// answers in milliseconds; a hung one should not stall connect.
	probeTimeout = 5 * time.Second
)

// Preflight verifies the bridge's runtime requirements: a Node.js
// installation of a supported major version and a working npm. It runs only
// on the auto-start path; a manually managed bridge brings its own runtime.
func Preflight(ctx context.Context) error {
	if err := checkRuntime(ctx); err != nil {
		return err
	}
	return checkPackageManager(ctx)
}

// checkRuntime probes `node --version` and enforces the version floor.
func checkRuntime(ctx context.Context) error {
	version, reason, cause := probeVersion(ctx, "node")
	if reason != "" {
		return &errors.RuntimeUnavailableError{Runtime: "node", Reason: reason, Cause: cause}
	}

	major, err := parseNodeMajor(version)
	if err != nil {
		return &errors.RuntimeUnavailableError{
			Runtime: "node",
			Reason:  fmt.Sprintf("could not parse version output %q", version),
			Cause:   err,
		}
	}

	if major < MinNodeMajor {
		return &errors.RuntimeUnavailableError{
			Runtime:  "node",
			Reason:   "version too old",
			Detected: version,
			MinMajor: MinNodeMajor,
		}
	}

	return nil
}

// checkPackageManager probes `npm --version`.
func checkPackageManager(ctx context.Context) error {
	if _, reason, cause := probeVersion(ctx, "npm"); reason != "" {
		return &errors.PackageManagerUnavailableError{Tool: "npm", Reason: reason, Cause: cause}
	}
	return nil
}

// RuntimeVersions reports the detected node and npm versions without
// enforcing the version floor. A binary that cannot be probed reports as
// "not found". Used by diagnostics output, not by the connect path.
func RuntimeVersions(ctx context.Context) (node, npm string) {
	node, npm = "not found", "not found"
	if v, reason, _ := probeVersion(ctx, "node"); reason == "" {
		node = v
	}
	if v, reason, _ := probeVersion(ctx, "npm"); reason == "" {
		npm = v
	}
	return node, npm
}

// probeVersion runs `<binary> --version` with a bounded timeout. On success
// it returns the trimmed output and an empty reason; on failure, a short
// reason and the underlying cause.
func probeVersion(ctx context.Context, binary string) (version, reason string, cause error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", "not found in PATH", err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, path, "--version").Output()
	if err != nil {
		if probeCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Sprintf("--version probe timed out after %v", probeTimeout), probeCtx.Err()
		}
		return "", "--version probe failed", err
	}

	version = strings.TrimSpace(string(out))
	if version == "" {
		return "", "--version produced no output", nil
	}

	return version, "", nil
}

// parseNodeMajor extracts the major version from node's output ("v18.17.0").
func parseNodeMajor(version string) (int, error) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	head, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("unexpected version format %q", version)
	}
	return major, nil
}
