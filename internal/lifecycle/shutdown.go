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

import "sync"

// The shutdown registry is a best-effort safety net for processes the
// engine spawned. Scoped teardown (defer engine.Disconnect) is the primary
// contract; the registry catches the paths where the program exits through
// a signal handler or os.Exit before deferred calls run.

var shutdownRegistry = struct {
	mu     sync.Mutex
	nextID int
	hooks  map[int]func()
	order  []int
	ran    bool
}{
	hooks: make(map[int]func()),
}

// OnShutdown registers fn to run when RunShutdownHooks fires. The returned
// cancel removes the hook; calling cancel after the hooks have run is a
// no-op. Hooks registered after RunShutdownHooks are never invoked.
func OnShutdown(fn func()) (cancel func()) {
	shutdownRegistry.mu.Lock()
	defer shutdownRegistry.mu.Unlock()

	if shutdownRegistry.ran {
		return func() {}
	}

	id := shutdownRegistry.nextID
	shutdownRegistry.nextID++
	shutdownRegistry.hooks[id] = fn
	shutdownRegistry.order = append(shutdownRegistry.order, id)

	return func() {
		shutdownRegistry.mu.Lock()
		defer shutdownRegistry.mu.Unlock()
		delete(shutdownRegistry.hooks, id)
	}
}

// RunShutdownHooks runs every registered hook once, most recently
// registered first. Subsequent calls are no-ops, so it is safe to invoke
// from both a deferred call and a signal handler.
func RunShutdownHooks() {
	shutdownRegistry.mu.Lock()
	if shutdownRegistry.ran {
		shutdownRegistry.mu.Unlock()
		return
	}
	shutdownRegistry.ran = true

	hooks := make([]func(), 0, len(shutdownRegistry.hooks))
	for i := len(shutdownRegistry.order) - 1; i >= 0; i-- {
		if fn, ok := shutdownRegistry.hooks[shutdownRegistry.order[i]]; ok {
			hooks = append(hooks, fn)
		}
	}
	shutdownRegistry.mu.Unlock()

	// Run outside the lock: a hook may (indirectly) call cancel.
	for _, fn := range hooks {
		fn()
	}
}

// resetShutdownHooks restores the registry to its initial state. Test use only.
func resetShutdownHooks() {
	shutdownRegistry.mu.Lock()
	defer shutdownRegistry.mu.Unlock()
	shutdownRegistry.hooks = make(map[int]func())
	shutdownRegistry.order = nil
	shutdownRegistry.nextID = 0
	shutdownRegistry.ran = false
}
