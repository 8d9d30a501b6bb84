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

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrNotBridgeProcess is returned when the PID belongs to something
	// other than a bridge runtime (stale or recycled PID file).
	ErrNotBridgeProcess = errors.New("process is not an outboard bridge")

	// ErrStopTimeout is returned when the process doesn't exit within the grace period.
	ErrStopTimeout = errors.New("stop timeout exceeded")
)

// ProcessInfo describes a process the bridge supervisor is tracking.
type ProcessInfo struct {
	PID     int
	Running bool
	Command string
}

// IsProcessRunning reports whether a process with the given PID exists.
// Zombies count as exited: they hold their PID but cannot answer signals
// or serve traffic.
func IsProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix FindProcess always succeeds; signal 0 performs the actual
	// existence and permission check without delivering anything.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false
	}

	return !isZombie(pid)
}

// IsBridgeProcess reports whether the given PID looks like a bridge runtime
// (node/npm). Guards against signalling an unrelated process when a PID file
// outlives the process it recorded.
func IsBridgeProcess(pid int) bool {
	return isBridgeProcess(pid)
}

// SendSignal delivers sig to the given process.
func SendSignal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}

	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("send signal %v to process %d: %w", sig, pid, err)
	}

	return nil
}

// WaitForExit polls until the process exits, checking every 100ms.
// Returns ErrStopTimeout if the process is still running after timeout.
func WaitForExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	interval := 100 * time.Millisecond

	for time.Now().Before(deadline) {
		if !IsProcessRunning(pid) {
			return nil
		}
		time.Sleep(interval)
	}

	return ErrStopTimeout
}

// GracefulShutdown sends SIGTERM and waits up to grace for the process to
// exit. If force is true and the grace period elapses, escalates to SIGKILL.
func GracefulShutdown(pid int, grace time.Duration, force bool) error {
	if !IsProcessRunning(pid) {
		return ErrProcessNotRunning
	}

	if err := SendSignal(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	err := WaitForExit(pid, grace)
	if err == nil {
		return nil
	}

	if !force {
		return err
	}

	if err := SendSignal(pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("send SIGKILL: %w", err)
	}

	if err := WaitForExit(pid, 5*time.Second); err != nil {
		return fmt.Errorf("process did not die after SIGKILL: %w", err)
	}

	return nil
}

// GetProcessInfo returns liveness and command line for the given PID.
func GetProcessInfo(pid int) (*ProcessInfo, error) {
	info := &ProcessInfo{
		PID:     pid,
		Running: IsProcessRunning(pid),
	}

	if info.Running {
		cmd, err := getProcessCommand(pid)
		if err != nil {
			// Alive but unreadable command line; still report liveness.
			info.Command = "<unknown>"
		} else {
			info.Command = cmd
		}
	}

	return info, nil
}
