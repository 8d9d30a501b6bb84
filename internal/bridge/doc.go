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

// Package bridge locates, starts, and supervises the Node.js query bridge.
//
// The bridge is a bundled Node application (a directory with a package.json
// defining a start script) that serves the query protocol over HTTP. This
// package owns everything between "the program wants a bridge" and "the
// bridge answers health checks": bundle discovery, runtime preflight,
// dependency installation, spawning, readiness polling, and teardown.
//
// # Attached mode
//
// A Supervisor ties the bridge's lifetime to the calling process:
//
//	sup := bridge.NewSupervisor(bridge.Options{URL: cfg.Bridge.URL})
//	started, err := sup.EnsureRunning(ctx)
//	...
//	defer sup.Stop(context.Background())
//
// EnsureRunning is idempotent and safe to call concurrently with other
// processes doing the same: if anything already answers on the endpoint,
// the supervisor leaves it alone and reports started=false. Externally
// managed instances are never terminated.
//
// # Detached mode
//
// StartDetached launches a bridge that survives the CLI invocation that
// created it, recording a PID file and a JSON state file under the XDG
// state directory. StopDetached and DetachedStatus operate on those
// records, verifying the recorded PID still belongs to a bridge before
// trusting it.
//
// # Failure reporting
//
// Every failure mode maps to a typed error in pkg/errors carrying a
// Remediation method: missing bundle, missing or outdated Node runtime,
// npm install failure, spawn failure, early exit (with a stderr tail),
// and readiness timeout.
package bridge
