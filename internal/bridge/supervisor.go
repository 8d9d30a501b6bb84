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
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/outboardhq/outboard/internal/config"
	"github.com/outboardhq/outboard/internal/lifecycle"
	"github.com/outboardhq/outboard/internal/log"
	"github.com/outboardhq/outboard/internal/schema"
	"github.com/outboardhq/outboard/pkg/errors"
)

// defaultPort is assumed when the endpoint URL carries no explicit port.
const defaultPort = 4466

// maxStderrTail bounds how much process stderr is retained for error
// reporting.
const maxStderrTail = 4096

// spawnCommand is how the bundle is launched. The bundle's package.json
// defines the start script; the supervisor never invokes node directly.
var spawnCommand = []string{"npm", "run", "start"}

// State is a supervisor lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateLocating
	StatePreflighting
	StateInstalling
	StateStarting
	StateWaitingReady
	StateReady
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateLocating:     "locating",
	StatePreflighting: "preflighting",
	StateInstalling:   "installing",
	StateStarting:     "starting",
	StateWaitingReady: "waiting-ready",
	StateReady:        "ready",
	StateFailed:       "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a Supervisor. Zero values fall back to the package
// defaults in internal/config.
type Options struct {
	// URL is the endpoint the bridge serves (and is probed at).
	URL string

	// BundleDir overrides bundle discovery when set.
	BundleDir string

	// SchemaPath overrides schema discovery when set.
	SchemaPath string

	// Datasources is a JSON document of datasource overrides handed to the
	// bridge verbatim via its environment. Empty means none.
	Datasources string

	// StartupTimeout bounds the spawn-to-ready window.
	StartupTimeout time.Duration

	// StopGrace is how long SIGTERM gets before SIGKILL.
	StopGrace time.Duration

	// InstallTimeout bounds npm install.
	InstallTimeout time.Duration

	// PollInterval is the readiness probe cadence.
	PollInterval time.Duration

	// DialTimeout bounds the is-something-listening TCP check.
	DialTimeout time.Duration

	// Logger receives supervisor diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.URL == "" {
		o.URL = config.DefaultBridgeURL
	}
	if o.StartupTimeout == 0 {
		o.StartupTimeout = config.DefaultStartupTimeout
	}
	if o.StopGrace == 0 {
		o.StopGrace = config.DefaultStopGrace
	}
	if o.InstallTimeout == 0 {
		o.InstallTimeout = config.DefaultInstallTimeout
	}
	if o.PollInterval == 0 {
		o.PollInterval = config.DefaultPollInterval
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Supervisor owns at most one bridge process and walks it through
// locate → preflight → install → start → ready. An instance that was
// already listening on the endpoint is treated as externally managed:
// never respawned, never terminated.
type Supervisor struct {
	opts   Options
	logger *slog.Logger

	mu             sync.Mutex
	state          State
	bundleDir      string
	cmd            *exec.Cmd
	stderr         *tailBuffer
	exitCh         chan error
	cancelShutdown func()
}

// NewSupervisor creates a supervisor for the bridge at opts.URL.
func NewSupervisor(opts Options) *Supervisor {
	opts.applyDefaults()
	return &Supervisor{
		opts:   opts,
		logger: opts.Logger.With(log.String(log.ComponentKey, "bridge-supervisor")),
		state:  StateIdle,
	}
}

// State returns the supervisor's current phase.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BundleDir returns the resolved bundle directory, or empty before location.
func (s *Supervisor) BundleDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundleDir
}

// EnsureRunning makes sure a bridge is answering at the endpoint. It
// returns started=true only when this call spawned the process. An
// endpoint that already accepts connections is left entirely alone.
func (s *Supervisor) EnsureRunning(ctx context.Context) (started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Owned process already up: a successful probe makes this a no-op.
	if s.state == StateReady && s.cmd != nil {
		if s.probeHealth(ctx) == nil {
			return false, nil
		}
		s.logger.Warn("owned bridge stopped answering, restarting",
			log.Int(log.PIDKey, s.cmd.Process.Pid))
		s.clearProcessLocked()
	}

	// Something is listening: externally managed, hands off. The dial is
	// a fast-path hint only; the authoritative check is the health poll.
	if endpointReachable(s.opts.URL, s.opts.DialTimeout) {
		s.logger.Debug("bridge already listening", log.String("url", s.opts.URL))
		s.state = StateIdle
		return false, nil
	}

	started, err = s.runLocked(ctx)
	if err != nil {
		s.setStateLocked(StateFailed)
		return false, err
	}
	return started, nil
}

// runLocked drives the state machine to Ready. Caller holds s.mu.
func (s *Supervisor) runLocked(ctx context.Context) (bool, error) {
	s.setStateLocked(StateLocating)
	if s.bundleDir == "" {
		dir, err := LocateBundle(s.opts.BundleDir)
		if err != nil {
			return false, err
		}
		s.bundleDir = dir
		s.logger.Debug("bundle located", log.String("dir", dir))
	}

	s.setStateLocked(StatePreflighting)
	if err := Preflight(ctx); err != nil {
		return false, err
	}

	if NeedsInstall(s.bundleDir) {
		s.setStateLocked(StateInstalling)
		if err := Install(ctx, s.bundleDir, s.opts.InstallTimeout); err != nil {
			return false, err
		}
	}

	s.setStateLocked(StateStarting)
	if err := s.spawnLocked(); err != nil {
		return false, err
	}

	s.setStateLocked(StateWaitingReady)
	owned, err := s.awaitReadyLocked(ctx)
	if err != nil {
		return false, err
	}
	if !owned {
		// Lost the listen race to a concurrent supervisor; the endpoint
		// is live, which is all the caller needs.
		s.setStateLocked(StateIdle)
		return false, nil
	}

	s.setStateLocked(StateReady)
	s.logger.Info("bridge ready",
		log.String("url", s.opts.URL),
		log.Int(log.PIDKey, s.cmd.Process.Pid))
	return true, nil
}

// spawnLocked starts the bundle process. Caller holds s.mu.
func (s *Supervisor) spawnLocked() error {
	port := endpointPort(s.opts.URL)

	env := append(os.Environ(), "OUTBOARD_BRIDGE_PORT="+strconv.Itoa(port))

	schemaPath, found := schema.Resolve(s.opts.SchemaPath)
	if schemaPath != "" {
		// Passed even when missing: the bridge reports a bad explicit
		// path with better context than we can here.
		env = append(env, "OUTBOARD_SCHEMA_PATH="+schemaPath)
		if !found {
			s.logger.Warn("schema file not found", log.String("path", schemaPath))
		}
	}

	if s.opts.Datasources != "" {
		env = append(env, "OUTBOARD_DATASOURCES="+s.opts.Datasources)
	}

	cmd := exec.Command(spawnCommand[0], spawnCommand[1:]...)
	cmd.Dir = s.bundleDir
	cmd.Env = env

	stderr := newTailBuffer(maxStderrTail)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return &errors.ProcessSpawnError{
			Command: commandLine(),
			Dir:     s.bundleDir,
			Cause:   err,
		}
	}

	s.cmd = cmd
	s.stderr = stderr
	s.exitCh = make(chan error, 1)
	go func() { s.exitCh <- cmd.Wait() }()

	// One teardown per spawned process: if the program exits through a
	// signal handler instead of Disconnect, the child is still reaped.
	s.cancelShutdown = lifecycle.OnShutdown(func() { s.Stop(context.Background()) })

	s.logger.Debug("bridge process spawned",
		log.Int(log.PIDKey, cmd.Process.Pid),
		log.Int(log.PortKey, port),
		log.String("dir", s.bundleDir))
	return nil
}

// awaitReadyLocked polls the health endpoint until the bridge answers,
// the process dies, or the startup deadline passes. owned=false means a
// concurrent supervisor won the listen race and is serving the endpoint.
// Caller holds s.mu.
func (s *Supervisor) awaitReadyLocked(ctx context.Context) (owned bool, err error) {
	deadline := s.opts.StartupTimeout
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error

	for {
		select {
		case exitErr := <-s.exitCh:
			// The process is gone. If the endpoint answers anyway,
			// another supervisor bound the port first (the bundle exits
			// with EADDRINUSE); that instance serves us fine.
			if endpointReachable(s.opts.URL, s.opts.DialTimeout) {
				s.logger.Debug("listen race lost to concurrent bridge",
					log.String("url", s.opts.URL))
				s.clearProcessLocked()
				return false, nil
			}
			spawnErr := &errors.ProcessSpawnError{
				Command:    commandLine(),
				Dir:        s.bundleDir,
				Exited:     true,
				ExitCode:   exitCode(exitErr),
				StderrTail: s.stderr.String(),
			}
			s.clearProcessLocked()
			return true, spawnErr

		case <-waitCtx.Done():
			timeoutErr := &errors.ReadinessTimeoutError{
				Timeout:    deadline,
				LastErr:    lastErr,
				StderrTail: s.stderr.String(),
			}
			// A process that never became ready is not left running.
			s.terminateLocked()
			return true, timeoutErr

		case <-ticker.C:
			probeErr := s.probeHealth(waitCtx)
			if probeErr == nil {
				return true, nil
			}
			lastErr = probeErr
		}
	}
}

// probeHealth performs one readiness check: GET /health must answer 200
// with a JSON body whose status field is "ok".
func (s *Supervisor) probeHealth(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.opts.URL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("bridge reported status %q", body.Status)
	}

	return nil
}

// Stop terminates the owned process: SIGTERM, a grace period, then SIGKILL.
// It is idempotent and a no-op for externally managed instances (the
// supervisor never owns those).
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Supervisor) stopLocked(ctx context.Context) error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pid := s.cmd.Process.Pid
	s.logger.Debug("stopping bridge process", log.Int(log.PIDKey, pid))

	err := lifecycle.GracefulShutdown(pid, s.opts.StopGrace, true)
	if err != nil && err != lifecycle.ErrProcessNotRunning {
		return fmt.Errorf("stop bridge process %d: %w", pid, err)
	}

	s.clearProcessLocked()
	s.setStateLocked(StateIdle)
	return nil
}

// terminateLocked force-stops the owned process without state ceremony,
// for cleanup on failed startups. Caller holds s.mu.
func (s *Supervisor) terminateLocked() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	pid := s.cmd.Process.Pid
	if err := lifecycle.GracefulShutdown(pid, s.opts.StopGrace, true); err != nil && err != lifecycle.ErrProcessNotRunning {
		s.logger.Warn("failed to stop unready bridge process",
			log.Int(log.PIDKey, pid), log.Error(err))
	}
	s.clearProcessLocked()
}

// clearProcessLocked forgets the owned process. Caller holds s.mu.
func (s *Supervisor) clearProcessLocked() {
	if s.cancelShutdown != nil {
		s.cancelShutdown()
		s.cancelShutdown = nil
	}
	s.cmd = nil
	s.stderr = nil
	s.exitCh = nil
}

func (s *Supervisor) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.logger.Debug("supervisor state change",
		log.String("from", s.state.String()),
		log.String(log.StateKey, next.String()))
	s.state = next
}

// commandLine renders the spawn command for error messages.
func commandLine() string {
	line := spawnCommand[0]
	for _, arg := range spawnCommand[1:] {
		line += " " + arg
	}
	return line
}

// exitCode extracts the exit status from cmd.Wait's error.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err == nil {
		return 0
	}
	return -1
}

// endpointPort extracts the port the bridge should listen on from the
// endpoint URL, defaulting to 4466 when the URL carries none.
func endpointPort(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultPort
	}
	if p := u.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			return port
		}
	}
	return defaultPort
}

// endpointReachable reports whether something accepts TCP connections at
// the endpoint. It says nothing about health; callers still probe.
func endpointReachable(rawURL string, timeout time.Duration) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := strconv.Itoa(endpointPort(rawURL))

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// tailBuffer retains the last max bytes written to it. exec.Cmd drains
// child stderr into it, so error reports carry recent output without
// unbounded growth.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
