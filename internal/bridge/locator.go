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
	"os"
	"path/filepath"

	"github.com/outboardhq/outboard/internal/config"
	"github.com/outboardhq/outboard/pkg/errors"
)

const (
	// BundleDirName is the bridge bundle directory name probed in each
	// discovery location.
	BundleDirName = "outboard-bridge"

	// manifestName marks a directory as a runnable bundle. A bare
	// directory with the right name is not enough; npm needs the manifest.
	manifestName = "package.json"
)

// LocateBundle finds the bridge bundle directory. An explicit override is
// checked first and exclusively trusted as a location (it still must hold a
// manifest); otherwise the discovery locations are probed in order:
//
//  1. outboard-bridge next to the running executable
//  2. outboard-bridge adjacent to the executable's install root (checkout layout)
//  3. outboard-bridge under the current working directory
//  4. the user data directory (~/.local/share/outboard/bridge)
//
// Pure lookup: no directory is created or modified. On failure every
// searched path is reported in a single LocatorNotFoundError.
func LocateBundle(override string) (string, error) {
	candidates := bundleCandidates(override)

	for _, dir := range candidates {
		if isBundle(dir) {
			return dir, nil
		}
	}

	return "", &errors.LocatorNotFoundError{Searched: candidates}
}

func bundleCandidates(override string) []string {
	if override != "" {
		return []string{override}
	}

	var candidates []string

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, BundleDirName),
			filepath.Join(exeDir, "..", BundleDirName),
		)
	}

	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, BundleDirName))
	}

	if dataDir, err := config.LookupDataDir(); err == nil {
		candidates = append(candidates, filepath.Join(dataDir, "bridge"))
	}

	return candidates
}

func isBundle(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}

	manifest, err := os.Stat(filepath.Join(dir, manifestName))
	return err == nil && !manifest.IsDir()
}
