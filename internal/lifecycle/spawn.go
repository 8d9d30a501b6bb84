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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// Spawner launches detached background processes for the bridge's
// daemonized mode.
type Spawner struct {
	// Env is the environment for the child process.
	Env []string

	// Dir is the working directory for the child process. The bridge
	// runtime must run from its bundle directory so npm resolves the
	// right package.json.
	Dir string
}

// NewSpawner creates a spawner inheriting the current environment.
func NewSpawner() *Spawner {
	return &Spawner{
		Env: os.Environ(),
	}
}

// WithEnv replaces the child environment.
func (s *Spawner) WithEnv(env []string) *Spawner {
	s.Env = env
	return s
}

// WithDir sets the child working directory.
func (s *Spawner) WithDir(dir string) *Spawner {
	s.Dir = dir
	return s
}

// SpawnDetached starts binary with args as a fully detached process:
// its own session and process group, stdin closed, stdout/stderr
// appended to logPath. Returns the child PID.
func (s *Spawner) SpawnDetached(binary string, args []string, logPath string) (int, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return 0, fmt.Errorf("create log directory: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(binary, args...)
	cmd.Env = s.Env
	cmd.Dir = s.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil

	cmd.SysProcAttr = &syscall.SysProcAttr{
		// New session (and with it a new process group): the child
		// survives the parent exiting and never receives the parent
		// terminal's signals. Setsid alone does both; adding Setpgid
		// would make the child's setpgid call fail with EPERM.
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start process: %w", err)
	}

	pid := cmd.Process.Pid

	// Don't wait for the child; it belongs to its own session now.
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("process started but failed to release: %w", err)
	}

	return pid, nil
}
