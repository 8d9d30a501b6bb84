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

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event is an append-only record of a bridge lifecycle transition.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"` // "start", "start_success", "stop", ...
	PID       int       `json:"pid,omitempty"`
	Port      int       `json:"port,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// EventLog appends bridge lifecycle events to a JSONL file so that
// "what happened to my bridge" is answerable after the fact.
type EventLog struct {
	path string
}

// NewEventLog creates an event log writing to path.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// LogStart records a detached start attempt.
func (l *EventLog) LogStart(port int) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Event:     "start",
		Port:      port,
		Success:   true,
		Message:   "bridge start initiated",
	})
}

// LogStartSuccess records a bridge that came up healthy.
func (l *EventLog) LogStartSuccess(pid int, attempts int, duration time.Duration) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Event:     "start_success",
		PID:       pid,
		Success:   true,
		Message:   fmt.Sprintf("bridge ready (probes: %d, duration: %v)", attempts, duration),
	})
}

// LogStartFailure records a start that never reached readiness.
func (l *EventLog) LogStartFailure(err error) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Event:     "start_failure",
		Success:   false,
		Message:   "bridge failed to start",
		Error:     err.Error(),
	})
}

// LogStop records a stop request.
func (l *EventLog) LogStop(pid int, force bool) error {
	msg := "bridge stop initiated"
	if force {
		msg = "bridge force stop initiated"
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Event:     "stop",
		PID:       pid,
		Success:   true,
		Message:   msg,
	})
}

// LogStopSuccess records a clean shutdown.
func (l *EventLog) LogStopSuccess(pid int, duration time.Duration) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Event:     "stop_success",
		PID:       pid,
		Success:   true,
		Message:   fmt.Sprintf("bridge stopped (duration: %v)", duration),
	})
}

// LogStalePID records a PID file that pointed at a dead or foreign process.
func (l *EventLog) LogStalePID(pid int, reason string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Event:     "stale_pid_detected",
		PID:       pid,
		Success:   true,
		Message:   fmt.Sprintf("stale PID file removed: %s", reason),
	})
}

// LogAlreadyRunning records a start that found a live bridge.
func (l *EventLog) LogAlreadyRunning(pid int) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Event:     "already_running",
		PID:       pid,
		Success:   true,
		Message:   "bridge already running",
	})
}

func (l *EventLog) write(event Event) error {
	logDir := filepath.Dir(l.path)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}
