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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/outboardhq/outboard/internal/bridge"
	"github.com/outboardhq/outboard/internal/commands/shared"
)

func newStopCommand() *cobra.Command {
	var (
		grace time.Duration
		force bool
	)

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the bridge",
		Long: `Stop a background bridge gracefully.

Sends SIGTERM and waits out the grace period before escalating to
SIGKILL. Stop is idempotent: when no bridge is running it exits
successfully after cleaning up stale PID files.

Use --force to skip the grace period and kill immediately.`,
		Example: `  # Stop gracefully
  outboard bridge stop

  # Allow a slow bridge more time to drain
  outboard bridge stop --grace 30s

  # Kill immediately
  outboard bridge stop --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			stopGrace := cfg.Bridge.StopGrace
			if cmd.Flags().Changed("grace") {
				stopGrace = grace
			}
			if force {
				// Negative grace escalates to SIGKILL without waiting.
				stopGrace = -1
			}

			stopped, err := bridge.StopDetached(cmd.Context(), stopGrace)
			if err != nil {
				return err
			}

			if shared.GetJSON() {
				return json.NewEncoder(os.Stdout).Encode(map[string]bool{"stopped": stopped})
			}
			if stopped {
				fmt.Println(shared.RenderOK("bridge stopped"))
			} else {
				fmt.Println(shared.RenderOK("bridge is not running"))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", 0, "Graceful shutdown window before SIGKILL (default 5s)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip graceful shutdown, send SIGKILL immediately")

	return cmd
}
