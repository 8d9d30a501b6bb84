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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSchema(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func waitForChange(t *testing.T, ch <-chan string, timeout time.Duration) (string, bool) {
	t.Helper()
	select {
	case path, ok := <-ch:
		return path, ok
	case <-time.After(timeout):
		return "", false
	}
}

func TestWatcher_ReportsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	writeSchema(t, path, "model User {}")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.WithDebounce(50 * time.Millisecond)
	w.Start(context.Background())
	defer w.Stop()

	writeSchema(t, path, "model User { id Int }")

	got, ok := waitForChange(t, w.Changes(), 3*time.Second)
	if !ok {
		t.Fatal("no change reported within timeout")
	}
	if got != path {
		t.Errorf("change path = %q, want %q", got, path)
	}
}

func TestWatcher_ReportsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	writeSchema(t, path, "model User {}")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.WithDebounce(50 * time.Millisecond)
	w.Start(context.Background())
	defer w.Stop()

	// Editor-style save: new file then rename over the original.
	tmp := filepath.Join(dir, ".schema.tmp")
	writeSchema(t, tmp, "model Post {}")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if _, ok := waitForChange(t, w.Changes(), 3*time.Second); !ok {
		t.Fatal("no change reported after atomic replace")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	writeSchema(t, path, "model User {}")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.WithDebounce(150 * time.Millisecond)
	w.Start(context.Background())
	defer w.Stop()

	for i := 0; i < 5; i++ {
		writeSchema(t, path, "model User {}")
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := waitForChange(t, w.Changes(), 3*time.Second); !ok {
		t.Fatal("no change reported for burst")
	}

	// The burst was inside one debounce window, so there is exactly one
	// notification.
	select {
	case extra := <-w.Changes():
		if extra != "" {
			t.Errorf("unexpected extra notification: %q", extra)
		}
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	writeSchema(t, path, "model User {}")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.WithDebounce(50 * time.Millisecond)
	w.Start(context.Background())
	defer w.Stop()

	writeSchema(t, filepath.Join(dir, "unrelated.txt"), "noise")

	if _, ok := waitForChange(t, w.Changes(), 500*time.Millisecond); ok {
		t.Error("change reported for unrelated sibling file")
	}
}

func TestWatcher_StopClosesChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	writeSchema(t, path, "model User {}")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.Start(context.Background())

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if _, ok := <-w.Changes(); ok {
		t.Error("Changes() channel still open after Stop()")
	}
}
