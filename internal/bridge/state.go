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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/outboardhq/outboard/internal/config"
	"github.com/outboardhq/outboard/internal/lifecycle"
	"github.com/outboardhq/outboard/internal/schema"
	"github.com/outboardhq/outboard/pkg/errors"
)

const (
	pidFileName   = "bridge.pid"
	stateFileName = "bridge.json"
	logFileName   = "bridge.log"
	eventLogName  = "events.jsonl"
)

// DetachedState describes a bridge started with StartDetached. It is
// persisted as JSON next to the PID file so status and stop work across
// CLI invocations.
type DetachedState struct {
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
	URL        string    `json:"url"`
	BundleDir  string    `json:"bundle_dir"`
	SchemaPath string    `json:"schema_path,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// stateDir is the directory holding the PID file, state file, and logs
// for detached instances.
func stateDir() (string, error) {
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bridge"), nil
}

// LogPath returns where a detached bridge writes its output.
func LogPath() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, logFileName), nil
}

func loadState(dir string) (*DetachedState, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if err != nil {
		return nil, err
	}
	var st DetachedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse bridge state file: %w", err)
	}
	return &st, nil
}

// saveState writes the state file atomically: a crash mid-write must not
// leave a half-parseable file for the next invocation.
func saveState(dir string, st *DetachedState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, stateFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, stateFileName))
}

func removeState(dir string) {
	os.Remove(filepath.Join(dir, stateFileName))
}

// StartDetached launches a bridge that outlives the calling process.
// It returns started=false when a healthy instance already exists,
// either a previous detached start or an externally managed server on
// the endpoint.
func StartDetached(ctx context.Context, opts Options) (*DetachedState, bool, error) {
	opts.applyDefaults()

	dir, err := stateDir()
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, false, err
	}

	events := lifecycle.NewEventLog(filepath.Join(dir, eventLogName))
	pidMgr := lifecycle.NewPIDFileManager(filepath.Join(dir, pidFileName))

	// A live PID file means a previous invocation's bridge may still be
	// up. Verify before trusting it: PIDs get recycled.
	if pid, err := pidMgr.Read(); err == nil {
		if lifecycle.IsProcessRunning(pid) && lifecycle.IsBridgeProcess(pid) {
			st, err := loadState(dir)
			if err != nil {
				st = &DetachedState{PID: pid, URL: opts.URL}
			}
			events.LogAlreadyRunning(pid)
			return st, false, nil
		}
		reason := "process not running"
		if lifecycle.IsProcessRunning(pid) {
			reason = "pid belongs to another program"
		}
		events.LogStalePID(pid, reason)
		pidMgr.Remove()
		removeState(dir)
	}

	// Someone else may be serving the endpoint without our PID file:
	// a foreground supervisor, or a bridge started by hand.
	if endpointReachable(opts.URL, opts.DialTimeout) {
		return nil, false, &errors.PortInUseError{
			Port: endpointPort(opts.URL),
			URL:  opts.URL,
		}
	}

	port := endpointPort(opts.URL)
	events.LogStart(port)

	bundleDir := opts.BundleDir
	if bundleDir == "" {
		located, err := LocateBundle("")
		if err != nil {
			events.LogStartFailure(err)
			return nil, false, err
		}
		bundleDir = located
	} else if _, err := os.Stat(filepath.Join(bundleDir, manifestName)); err != nil {
		err = &errors.LocatorNotFoundError{Searched: []string{bundleDir}}
		events.LogStartFailure(err)
		return nil, false, err
	}

	if err := Preflight(ctx); err != nil {
		events.LogStartFailure(err)
		return nil, false, err
	}

	if NeedsInstall(bundleDir) {
		if err := Install(ctx, bundleDir, opts.InstallTimeout); err != nil {
			events.LogStartFailure(err)
			return nil, false, err
		}
	}

	env := append(os.Environ(), fmt.Sprintf("OUTBOARD_BRIDGE_PORT=%d", port))
	schemaPath, _ := schema.Resolve(opts.SchemaPath)
	if schemaPath != "" {
		env = append(env, "OUTBOARD_SCHEMA_PATH="+schemaPath)
	}
	if opts.Datasources != "" {
		env = append(env, "OUTBOARD_DATASOURCES="+opts.Datasources)
	}

	spawner := lifecycle.NewSpawner().WithEnv(env).WithDir(bundleDir)
	start := time.Now()
	pid, err := spawner.SpawnDetached(spawnCommand[0], spawnCommand[1:], filepath.Join(dir, logFileName))
	if err != nil {
		spawnErr := &errors.ProcessSpawnError{
			Command: commandLine(),
			Dir:     bundleDir,
			Cause:   err,
		}
		events.LogStartFailure(spawnErr)
		return nil, false, spawnErr
	}

	if err := pidMgr.Create(pid); err != nil {
		// Could not claim the PID file after spawning: another start
		// raced us. Give up our process; the winner's instance serves.
		lifecycle.GracefulShutdown(pid, opts.StopGrace, true)
		events.LogStartFailure(err)
		return nil, false, err
	}

	st := &DetachedState{
		PID:        pid,
		Port:       port,
		URL:        opts.URL,
		BundleDir:  bundleDir,
		SchemaPath: schemaPath,
		StartedAt:  start,
	}
	if err := saveState(dir, st); err != nil {
		lifecycle.GracefulShutdown(pid, opts.StopGrace, true)
		pidMgr.Remove()
		events.LogStartFailure(err)
		return nil, false, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.StartupTimeout)
	defer cancel()

	prober := lifecycle.NewProber(opts.URL + "/health")
	attempts, exited, err := waitUntilHealthyOrExit(waitCtx, prober, pid, opts.PollInterval)
	if err != nil {
		logTail := readLogTail(filepath.Join(dir, logFileName))
		lifecycle.GracefulShutdown(pid, opts.StopGrace, true)
		pidMgr.Remove()
		removeState(dir)

		var failure error
		if exited {
			// Detached processes are not our children, so the exit
			// status is unobtainable; the log tail has to carry the story.
			failure = &errors.ProcessSpawnError{
				Command:    commandLine(),
				Dir:        bundleDir,
				Exited:     true,
				ExitCode:   -1,
				StderrTail: logTail,
			}
		} else {
			failure = &errors.ReadinessTimeoutError{
				Timeout:    opts.StartupTimeout,
				LastErr:    err,
				StderrTail: logTail,
			}
		}
		events.LogStartFailure(failure)
		return nil, false, failure
	}

	events.LogStartSuccess(pid, attempts, time.Since(start))
	return st, true, nil
}

// waitUntilHealthyOrExit polls the health endpoint until it answers 200
// with the ok marker, failing fast when the detached process dies instead
// of polling a dead endpoint until the deadline.
func waitUntilHealthyOrExit(ctx context.Context, prober *lifecycle.Prober, pid int, interval time.Duration) (attempts int, exited bool, err error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return attempts, false, lifecycle.ErrProbeTimeout
		case <-ticker.C:
			attempts++
			if result := prober.Probe(ctx); result.Healthy && healthOK(result.Body) {
				return attempts, false, nil
			}
			if !lifecycle.IsProcessRunning(pid) {
				return attempts, true, fmt.Errorf("bridge process %d exited during startup", pid)
			}
		}
	}
}

// healthOK reports whether a health response body carries the ready
// marker. The bridge answers 200 with status "starting" while it boots,
// so a 2xx alone is not readiness.
func healthOK(body []byte) bool {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Status == "ok"
}

// readLogTail returns up to maxStderrTail bytes from the end of the
// detached process log, best effort.
func readLogTail(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	size := info.Size()
	offset := int64(0)
	if size > maxStderrTail {
		offset = size - maxStderrTail
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return ""
	}
	return string(buf)
}

// StopDetached terminates a detached bridge and cleans up its files.
// stopped=false with a nil error means there was nothing to stop. A zero
// grace selects the default; a negative grace escalates to SIGKILL
// immediately.
func StopDetached(ctx context.Context, stopGrace time.Duration) (bool, error) {
	if stopGrace == 0 {
		stopGrace = config.DefaultStopGrace
	}

	dir, err := stateDir()
	if err != nil {
		return false, err
	}

	events := lifecycle.NewEventLog(filepath.Join(dir, eventLogName))
	pidMgr := lifecycle.NewPIDFileManager(filepath.Join(dir, pidFileName))

	pid, err := pidMgr.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if !lifecycle.IsProcessRunning(pid) {
		events.LogStalePID(pid, "process not running")
		pidMgr.Remove()
		removeState(dir)
		return false, nil
	}

	events.LogStop(pid, false)
	start := time.Now()
	err = lifecycle.GracefulShutdown(pid, stopGrace, true)
	if err != nil && err != lifecycle.ErrProcessNotRunning {
		return false, fmt.Errorf("stop bridge process %d: %w", pid, err)
	}

	pidMgr.Remove()
	removeState(dir)
	events.LogStopSuccess(pid, time.Since(start))
	return true, nil
}

// DetachedStatus reports on any detached instance: its persisted state
// and whether the recorded process is actually alive.
func DetachedStatus() (*DetachedState, bool, error) {
	dir, err := stateDir()
	if err != nil {
		return nil, false, err
	}

	pidMgr := lifecycle.NewPIDFileManager(filepath.Join(dir, pidFileName))
	pid, err := pidMgr.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	st, err := loadState(dir)
	if err != nil {
		st = &DetachedState{PID: pid}
	}

	running := lifecycle.IsProcessRunning(pid) && lifecycle.IsBridgeProcess(pid)
	return st, running, nil
}
