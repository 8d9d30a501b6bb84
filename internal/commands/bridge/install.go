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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/outboardhq/outboard/internal/bridge"
	"github.com/outboardhq/outboard/internal/commands/shared"
)

func newInstallCommand() *cobra.Command {
	var (
		bundleDir string
		timeout   time.Duration
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install bridge dependencies",
		Long: `Locate the bridge bundle and install its dependencies.

Connecting installs dependencies automatically on first use, which can
take minutes. Running install ahead of time (in an image build or a
deploy step) moves that cost out of the first connect.`,
		Example: `  # Provision the discovered bundle
  outboard bridge install

  # Provision a specific bundle
  outboard bridge install --bridge-dir ./vendor/outboard-bridge

  # Reinstall even when node_modules exists
  outboard bridge install --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if bundleDir != "" {
				cfg.Bridge.Dir = bundleDir
			}
			installTimeout := cfg.Bridge.InstallTimeout
			if timeout > 0 {
				installTimeout = timeout
			}

			ctx := cmd.Context()

			dir, err := bridge.LocateBundle(cfg.Bridge.Dir)
			if err != nil {
				return shared.ClassifyExitError(err)
			}
			if err := bridge.Preflight(ctx); err != nil {
				return shared.ClassifyExitError(err)
			}

			if !force && !bridge.NeedsInstall(dir) {
				fmt.Println(shared.RenderOK("bridge dependencies already installed"))
				fmt.Println(shared.RenderKV("bundle", dir))
				return nil
			}

			var spin *shared.Spinner
			if !shared.GetQuiet() {
				spin = shared.NewSpinner()
				spin.Start("Installing bridge dependencies")
			}
			err = bridge.Install(ctx, dir, installTimeout)
			var elapsed time.Duration
			if spin != nil {
				elapsed = spin.Stop()
			}
			if err != nil {
				return shared.ClassifyExitError(err)
			}

			fmt.Println(shared.RenderOK(fmt.Sprintf("bridge dependencies installed in %s", elapsed.Round(time.Second))))
			fmt.Println(shared.RenderKV("bundle", dir))
			return nil
		},
	}

	cmd.Flags().StringVar(&bundleDir, "bridge-dir", "", "Bridge bundle directory (overrides discovery)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Install timeout (default 10m)")
	cmd.Flags().BoolVar(&force, "force", false, "Install even when dependencies look present")

	return cmd
}
