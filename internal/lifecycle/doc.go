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

/*
Package lifecycle provides process primitives for supervising the bridge
runtime: secure PID files, detached spawning, liveness checks, readiness
probing, shutdown hooks, and an audit log of lifecycle events.

# PID File Management

PID files decide which process receives shutdown signals, so creation is
atomic (O_EXCL) and guarded by an exclusive flock:

	manager := lifecycle.NewPIDFileManager("/path/to/bridge.pid")
	if err := manager.Create(pid); err != nil {
	    // handle error
	}
	defer manager.Remove()

# Process Operations

Before signalling a PID read from disk, validate that it still belongs to
a bridge runtime; PID files can outlive their processes:

	pid, err := manager.Read()
	if err != nil {
	    // handle error
	}

	if !lifecycle.IsBridgeProcess(pid) {
	    // stale PID file
	}

	if err := lifecycle.GracefulShutdown(pid, 5*time.Second, true); err != nil {
	    // handle error
	}

# Readiness Probing

The bridge's health route answers as soon as its listener is up. Probing
polls it at a fixed short interval until the context deadline:

	prober := lifecycle.NewProber("http://localhost:4466/health")
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := prober.WaitUntilHealthy(ctx); err != nil {
	    // bridge failed to come up
	}

# Shutdown Hooks

Supervisors register a teardown per spawned process so an interrupted
program still reaps its children:

	cancel := lifecycle.OnShutdown(func() { sup.Stop(context.Background()) })
	defer cancel()

Program mains drain the registry on exit and on SIGINT/SIGTERM via
lifecycle.RunShutdownHooks, which is idempotent.
*/
package lifecycle
