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

//go:build linux

package lifecycle

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// isBridgeProcess checks /proc/[pid]/cmdline for a bridge runtime signature.
// The bridge is launched as "npm run start" which in turn execs node with the
// bundle path, so matching node/npm or the bundle directory name covers both
// the parent and the re-execed child.
func isBridgeProcess(pid int) bool {
	cmd, err := getProcessCommand(pid)
	if err != nil {
		return false
	}

	return strings.Contains(cmd, "outboard-bridge") ||
		strings.Contains(cmd, "npm") ||
		strings.Contains(cmd, "node")
}

// getProcessCommand returns the command line of the process.
func getProcessCommand(pid int) (string, error) {
	cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return "", fmt.Errorf("read cmdline: %w", err)
	}

	// cmdline is NUL-separated
	cmd := strings.ReplaceAll(string(cmdline), "\x00", " ")
	return strings.TrimSpace(cmd), nil
}

// isZombie reports whether the process has exited but not been reaped.
// Signal 0 still succeeds for zombies, so liveness checks must exclude them.
func isZombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}

	// The state field follows the parenthesized comm, which may itself
	// contain parentheses; split after the last ')'.
	i := bytes.LastIndexByte(data, ')')
	if i < 0 || i+2 >= len(data) {
		return false
	}
	return data[i+2] == 'Z'
}
