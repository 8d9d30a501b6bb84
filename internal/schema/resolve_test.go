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

package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_ExplicitPath(t *testing.T) {
	t.Run("existing explicit path wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.outboard")
		if err := os.WriteFile(path, []byte("model User {}"), 0644); err != nil {
			t.Fatal(err)
		}

		got, found := Resolve(path)
		if !found {
			t.Error("Resolve() found = false, want true")
		}
		if got != path {
			t.Errorf("Resolve() = %q, want %q", got, path)
		}
	})

	t.Run("missing explicit path is returned verbatim", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent.outboard")

		got, found := Resolve(path)
		if found {
			t.Error("Resolve() found = true for missing file, want false")
		}
		if got != path {
			t.Errorf("Resolve() = %q, want the explicit path back", got)
		}
	})

	t.Run("explicit directory does not count as a schema", func(t *testing.T) {
		dir := t.TempDir()

		_, found := Resolve(dir)
		if found {
			t.Error("Resolve() found = true for a directory, want false")
		}
	})
}

func TestResolve_Discovery(t *testing.T) {
	t.Run("finds schema in current directory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		if err := os.WriteFile(DefaultFileName, []byte("model User {}"), 0644); err != nil {
			t.Fatal(err)
		}

		got, found := Resolve("")
		if !found {
			t.Fatal("Resolve() found = false, want true")
		}
		if got != DefaultFileName {
			t.Errorf("Resolve() = %q, want %q", got, DefaultFileName)
		}
	})

	t.Run("falls back to db subdirectory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		if err := os.MkdirAll("db", 0755); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join("db", DefaultFileName)
		if err := os.WriteFile(want, []byte("model User {}"), 0644); err != nil {
			t.Fatal(err)
		}

		got, found := Resolve("")
		if !found {
			t.Fatal("Resolve() found = false, want true")
		}
		if got != want {
			t.Errorf("Resolve() = %q, want %q", got, want)
		}
	})

	t.Run("current directory beats db subdirectory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		if err := os.MkdirAll("db", 0755); err != nil {
			t.Fatal(err)
		}
		for _, p := range []string{DefaultFileName, filepath.Join("db", DefaultFileName)} {
			if err := os.WriteFile(p, []byte("model User {}"), 0644); err != nil {
				t.Fatal(err)
			}
		}

		got, _ := Resolve("")
		if got != DefaultFileName {
			t.Errorf("Resolve() = %q, want %q", got, DefaultFileName)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Chdir(t.TempDir())

		got, found := Resolve("")
		if found {
			t.Errorf("Resolve() = %q, found = true in empty directory", got)
		}
		if got != "" {
			t.Errorf("Resolve() = %q, want empty", got)
		}
	})
}

func TestCandidates(t *testing.T) {
	candidates := Candidates()
	if len(candidates) < 2 {
		t.Fatalf("Candidates() returned %d paths, want at least 2", len(candidates))
	}

	for _, c := range candidates {
		if filepath.Base(c) != DefaultFileName {
			t.Errorf("candidate %q does not end in %q", c, DefaultFileName)
		}
	}
}
