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

// Package schema locates the datamodel file the bridge loads and watches
// it for edits.
package schema

import (
	"os"
	"path/filepath"
)

// DefaultFileName is the schema file name probed in the discovery locations.
const DefaultFileName = "schema.outboard"

// Resolve returns the schema file path the bridge should load and whether
// it exists. An explicit path always wins and is returned verbatim even
// when missing, so the bridge can report the author's intent rather than a
// silent fallback. With no explicit path, the first hit in the discovery
// order is returned:
//
//  1. schema.outboard next to the running executable
//  2. ./schema.outboard
//  3. ./db/schema.outboard
//
// Returns ("", false) when nothing is found; a missing schema is reported
// by the bridge at connect time, not here.
func Resolve(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, fileExists(explicit)
	}

	for _, candidate := range candidates() {
		if fileExists(candidate) {
			return candidate, true
		}
	}

	return "", false
}

// Candidates returns the discovery locations in probe order, for error
// messages that list where a schema was looked for.
func Candidates() []string {
	return candidates()
}

func candidates() []string {
	var paths []string

	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), DefaultFileName))
	}

	paths = append(paths,
		DefaultFileName,
		filepath.Join("db", DefaultFileName),
	)

	return paths
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
