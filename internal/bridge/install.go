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
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/outboardhq/outboard/internal/log"
	"github.com/outboardhq/outboard/pkg/errors"
)

// NeedsInstall reports whether the bundle's dependencies are missing.
// Presence of node_modules is the signal npm itself uses; a partial install
// is npm's problem to repair, not ours to detect.
func NeedsInstall(bundleDir string) bool {
	info, err := os.Stat(filepath.Join(bundleDir, "node_modules"))
	return err != nil || !info.IsDir()
}

// Install runs `npm install` in the bundle directory. The call blocks for
// up to timeout (dependency trees can be large; the default is generous).
// Installer stderr is captured and carried in the error on failure.
func Install(ctx context.Context, bundleDir string, timeout time.Duration) error {
	logger := slog.Default().With(log.String(log.ComponentKey, "bridge"))
	logger.Info("installing bridge dependencies", log.String("dir", bundleDir))

	installCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	cmd := exec.CommandContext(installCtx, "npm", "install")
	cmd.Dir = bundleDir
	stderr := newTailBuffer(maxStderrTail)
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		logger.Info("bridge dependencies installed", log.Duration("install", time.Since(start).Milliseconds()))
		return nil
	}

	if installCtx.Err() == context.DeadlineExceeded {
		return &errors.DependencyInstallError{
			Dir:    bundleDir,
			Stderr: stderr.String(),
			Cause:  fmt.Errorf("timed out after %v", timeout),
		}
	}

	return &errors.DependencyInstallError{
		Dir:    bundleDir,
		Stderr: stderr.String(),
		Cause:  err,
	}
}
