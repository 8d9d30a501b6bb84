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
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/outboardhq/outboard/internal/log"
)

// Watcher reports edits to a single schema file. It watches the parent
// directory rather than the file: editors save atomically via
// write-temp-then-rename, which replaces the inode and would silently kill
// a watch on the file itself.
type Watcher struct {
	path     string
	dir      string
	watcher  *fsnotify.Watcher
	changes  chan string
	logger   *slog.Logger
	limiter  *rate.Limiter
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for the schema file at path.
// Defaults: 500ms debounce window, at most 30 change notifications per
// minute (a hot editor loop shouldn't turn into a bridge restart storm).
func NewWatcher(path string) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve schema path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch schema directory: %w", err)
	}

	return &Watcher{
		path:     absPath,
		dir:      dir,
		watcher:  fsw,
		changes:  make(chan string, 16),
		logger:   slog.Default().With(log.String(log.ComponentKey, "schema-watcher"), log.String("path", absPath)),
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 5),
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// WithDebounce sets the quiet window required before a change is reported.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// WithRateLimit caps change notifications at limit per interval with the
// given burst.
func (w *Watcher) WithRateLimit(interval time.Duration, burst int) *Watcher {
	w.limiter = rate.NewLimiter(rate.Every(interval), burst)
	return w
}

// Start begins watching. The watcher stops when ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.eventLoop(ctx)
	w.logger.Debug("schema watcher started")
}

// Stop halts the watcher and releases the underlying fsnotify resources.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// Changes returns the channel on which schema-change notifications are
// delivered. Each value is the schema path. The channel closes when the
// watcher stops.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Path returns the absolute path of the watched schema file.
func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.changes)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("schema watcher stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Debug("schema watcher stopped")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event) {
				continue
			}
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(w.debounce)
				debounceCh = debounceTimer.C
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)
		case <-debounceCh:
			debounceTimer = nil
			debounceCh = nil
			w.emit()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("schema watcher error", log.Error(err))
		}
	}
}

// matches reports whether the event concerns the schema file. Create and
// Rename both appear during atomic saves; Write covers in-place edits.
func (w *Watcher) matches(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) emit() {
	if !w.limiter.Allow() {
		w.logger.Warn("schema change suppressed by rate limit")
		return
	}

	select {
	case w.changes <- w.path:
		w.logger.Debug("schema change detected")
	default:
		w.logger.Warn("change channel full, dropping notification")
	}
}
