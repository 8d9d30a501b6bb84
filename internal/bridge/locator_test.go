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
	"testing"

	"github.com/outboardhq/outboard/pkg/errors"
)

// makeBundle creates a minimal runnable bundle layout under dir.
func makeBundle(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	manifest := filepath.Join(dir, "package.json")
	if err := os.WriteFile(manifest, []byte(`{"name":"outboard-bridge","scripts":{"start":"node server.js"}}`), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return dir
}

func TestLocateBundle_Override(t *testing.T) {
	t.Run("valid override wins", func(t *testing.T) {
		bundle := makeBundle(t, filepath.Join(t.TempDir(), "custom-bundle"))

		got, err := LocateBundle(bundle)
		if err != nil {
			t.Fatalf("LocateBundle() error = %v", err)
		}
		if got != bundle {
			t.Errorf("LocateBundle() = %q, want %q", got, bundle)
		}
	})

	t.Run("override without manifest fails", func(t *testing.T) {
		dir := t.TempDir()

		_, err := LocateBundle(dir)
		if err == nil {
			t.Fatal("LocateBundle() expected error for bare directory")
		}

		var notFound *errors.LocatorNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("LocateBundle() error = %T, want *LocatorNotFoundError", err)
		}
		if len(notFound.Searched) != 1 || notFound.Searched[0] != dir {
			t.Errorf("Searched = %v, want only the override %q", notFound.Searched, dir)
		}
	})

	t.Run("override suppresses discovery", func(t *testing.T) {
		// A perfectly good bundle in the working directory must not
		// rescue a bad override.
		work := t.TempDir()
		makeBundle(t, filepath.Join(work, BundleDirName))
		t.Chdir(work)

		missing := filepath.Join(t.TempDir(), "nope")
		if _, err := LocateBundle(missing); err == nil {
			t.Fatal("LocateBundle() expected error, got nil")
		}
	})
}

func TestLocateBundle_Discovery(t *testing.T) {
	t.Run("finds bundle in working directory", func(t *testing.T) {
		work := t.TempDir()
		want := makeBundle(t, filepath.Join(work, BundleDirName))
		t.Chdir(work)

		got, err := LocateBundle("")
		if err != nil {
			t.Fatalf("LocateBundle() error = %v", err)
		}
		if got != want {
			t.Errorf("LocateBundle() = %q, want %q", got, want)
		}
	})

	t.Run("bundle directory without manifest is skipped", func(t *testing.T) {
		work := t.TempDir()
		if err := os.MkdirAll(filepath.Join(work, BundleDirName), 0755); err != nil {
			t.Fatal(err)
		}
		t.Chdir(work)
		t.Setenv("XDG_DATA_HOME", filepath.Join(work, "data"))

		_, err := LocateBundle("")
		if err == nil {
			t.Fatal("LocateBundle() expected error for manifest-less directory")
		}
	})

	t.Run("manifest must be a regular file", func(t *testing.T) {
		work := t.TempDir()
		if err := os.MkdirAll(filepath.Join(work, BundleDirName, "package.json"), 0755); err != nil {
			t.Fatal(err)
		}
		t.Chdir(work)
		t.Setenv("XDG_DATA_HOME", filepath.Join(work, "data"))

		if _, err := LocateBundle(""); err == nil {
			t.Fatal("LocateBundle() expected error when package.json is a directory")
		}
	})

	t.Run("error lists every searched path", func(t *testing.T) {
		work := t.TempDir()
		t.Chdir(work)
		t.Setenv("XDG_DATA_HOME", filepath.Join(work, "data"))

		_, err := LocateBundle("")
		var notFound *errors.LocatorNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("LocateBundle() error = %T, want *LocatorNotFoundError", err)
		}
		if len(notFound.Searched) == 0 {
			t.Error("Searched is empty, want every probed location")
		}
		found := false
		for _, p := range notFound.Searched {
			if p == filepath.Join(work, BundleDirName) {
				found = true
			}
		}
		if !found {
			t.Errorf("Searched = %v, missing working-directory candidate", notFound.Searched)
		}
	})
}

func TestLocateBundle_DataDir(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	want := makeBundle(t, filepath.Join(dataHome, "outboard", "bridge"))

	// Keep the working directory free of closer candidates.
	t.Chdir(t.TempDir())

	got, err := LocateBundle("")
	if err != nil {
		t.Fatalf("LocateBundle() error = %v", err)
	}
	if got != want {
		t.Errorf("LocateBundle() = %q, want %q", got, want)
	}
}
