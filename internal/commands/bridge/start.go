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
	"time"

	"github.com/spf13/cobra"

	"github.com/outboardhq/outboard/internal/bridge"
	"github.com/outboardhq/outboard/internal/commands/shared"
	"github.com/outboardhq/outboard/internal/schema"
)

func newStartCommand() *cobra.Command {
	var (
		foreground bool
		watch      bool
		bundleDir  string
		schemaPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bridge",
		Long: `Start the query-engine bridge in the background.

The bridge is located, its runtime checked, dependencies installed when
missing, and the process spawned detached with a PID file under the state
directory. The command returns once the bridge answers health probes.

Start is idempotent: when a healthy bridge is already running it exits
successfully without spawning another.

Use --foreground to supervise the bridge from the current terminal
instead (no PID file; Ctrl-C stops it). With --watch the foreground
bridge is restarted whenever the schema file changes.`,
		Example: `  # Start the bridge in the background
  outboard bridge start

  # Keep it attached to this terminal
  outboard bridge start --foreground

  # Restart on schema edits during development
  outboard bridge start --foreground --watch

  # Use a specific bundle
  outboard bridge start --bridge-dir ./vendor/outboard-bridge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && !foreground {
				return fmt.Errorf("--watch requires --foreground")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if bundleDir != "" {
				cfg.Bridge.Dir = bundleDir
			}
			if schemaPath != "" {
				cfg.Bridge.SchemaPath = schemaPath
			}
			if timeout > 0 {
				cfg.Bridge.StartupTimeout = timeout
			}

			opts := bridgeOptions(cfg, cliLogger(cfg))
			if foreground {
				return runStartForeground(cmd.Context(), opts, watch)
			}
			return runStartDetached(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run attached to this terminal (no PID file)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Restart the bridge when the schema changes (requires --foreground)")
	cmd.Flags().StringVar(&bundleDir, "bridge-dir", "", "Bridge bundle directory (overrides discovery)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema file handed to the bridge")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Startup readiness timeout (default 30s)")

	return cmd
}

// startResult is the --json document for bridge start.
type startResult struct {
	Started   bool   `json:"started"`
	PID       int    `json:"pid"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
	BundleDir string `json:"bundle_dir"`
	LogPath   string `json:"log_path,omitempty"`
}

func runStartDetached(ctx context.Context, opts bridge.Options) error {
	var spin *shared.Spinner
	if !shared.GetQuiet() && !shared.GetJSON() {
		spin = shared.NewSpinner()
		spin.Start("Starting bridge")
	}

	st, started, err := bridge.StartDetached(ctx, opts)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return shared.ClassifyExitError(err)
	}

	logPath, _ := bridge.LogPath()

	if shared.GetJSON() {
		return json.NewEncoder(os.Stdout).Encode(startResult{
			Started:   started,
			PID:       st.PID,
			Port:      st.Port,
			URL:       st.URL,
			BundleDir: st.BundleDir,
			LogPath:   logPath,
		})
	}

	if !started {
		fmt.Println(shared.RenderOK(fmt.Sprintf("bridge already running (pid %d)", st.PID)))
		return nil
	}

	fmt.Println(shared.RenderOK(fmt.Sprintf("bridge started (pid %d)", st.PID)))
	fmt.Println(shared.RenderKV("url", st.URL))
	fmt.Println(shared.RenderKV("bundle", st.BundleDir))
	if st.SchemaPath != "" {
		fmt.Println(shared.RenderKV("schema", st.SchemaPath))
	}
	if logPath != "" {
		fmt.Println(shared.RenderKV("log", logPath))
	}
	return nil
}

func runStartForeground(ctx context.Context, opts bridge.Options, watch bool) error {
	sup := bridge.NewSupervisor(opts)

	started, err := sup.EnsureRunning(ctx)
	if err != nil {
		return shared.ClassifyExitError(err)
	}
	if !started {
		fmt.Println(shared.RenderOK("bridge already running at " + opts.URL))
		return nil
	}

	fmt.Println(shared.RenderOK("bridge running at " + opts.URL + " (Ctrl-C to stop)"))

	var changes <-chan string
	if watch {
		watcher, err := newSchemaWatcher(opts.SchemaPath)
		if err != nil {
			_ = sup.Stop(context.Background())
			return err
		}
		defer watcher.Stop()
		watcher.Start(ctx)
		changes = watcher.Changes()
		fmt.Println(shared.RenderKV("watching", watcher.Path()))
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Println(shared.RenderWarn("stopping bridge"))
			return sup.Stop(context.Background())
		case path := <-changes:
			fmt.Println(shared.RenderWarn("schema changed: " + path))
			if err := sup.Stop(context.Background()); err != nil {
				fmt.Println(shared.RenderError("stop failed: " + err.Error()))
				continue
			}
			if _, err := sup.EnsureRunning(ctx); err != nil {
				fmt.Println(shared.RenderError("restart failed: " + err.Error()))
				continue
			}
			fmt.Println(shared.RenderOK("bridge restarted"))
		}
	}
}

// newSchemaWatcher resolves the schema path and builds a watcher for it.
func newSchemaWatcher(explicit string) (*schema.Watcher, error) {
	path, found := schema.Resolve(explicit)
	if !found {
		return nil, fmt.Errorf("no schema file to watch (looked for %v); pass --schema", schema.Candidates())
	}
	return schema.NewWatcher(path)
}
