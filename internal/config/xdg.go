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

package config

import (
	"os"
	"path/filepath"
)

// xdgDir resolves an XDG base directory: the env override when set,
// otherwise fallback under the user's home. The outboard subdirectory is
// created with owner-only permissions.
func xdgDir(envVar, fallback string) (string, error) {
	dir, err := lookupXDGDir(envVar, fallback)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// lookupXDGDir resolves the same path as xdgDir without creating it.
func lookupXDGDir(envVar, fallback string) (string, error) {
	base := os.Getenv(envVar)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, "outboard"), nil
}

// ConfigDir returns the XDG config directory for Outboard
// (typically ~/.config/outboard). Respects XDG_CONFIG_HOME.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for Outboard
// (typically ~/.local/share/outboard). Respects XDG_DATA_HOME.
// Bridge bundles installed per-user live here.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory for Outboard
// (typically ~/.local/state/outboard). Respects XDG_STATE_HOME.
// Detached bridge pidfiles, state records, and logs live here.
func StateDir() (string, error) {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// LookupDataDir returns the path DataDir would use without creating it.
// Probing code that must stay side-effect free uses this.
func LookupDataDir() (string, error) {
	return lookupXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigPath returns the full path to the user-level config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
