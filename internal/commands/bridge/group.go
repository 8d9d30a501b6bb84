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

// Package bridge implements the `outboard bridge` command group: starting,
// stopping, inspecting, and provisioning the query-engine bridge process
// outside of any one application's lifetime.
package bridge

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/outboardhq/outboard/internal/bridge"
	"github.com/outboardhq/outboard/internal/commands/shared"
	"github.com/outboardhq/outboard/internal/config"
)

// NewCommand creates the bridge command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Manage the query-engine bridge",
		Long: `Commands for managing the query-engine bridge process.

The bridge is the Node.js sidecar that executes queries. Applications
normally start it on demand; these commands manage a shared instance
explicitly so applications connect to an already-running bridge.`,
	}

	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newLogsCommand())
	cmd.AddCommand(newInstallCommand())

	return cmd
}

// loadConfig resolves the effective configuration for bridge commands:
// file (when present), then environment, then flags applied by the caller.
func loadConfig() (*config.Config, error) {
	return config.Load(shared.GetConfigPath())
}

// cliLogger builds the logger bridge commands hand to the runtime packages.
func cliLogger(cfg *config.Config) *slog.Logger {
	return shared.NewLogger(cfg.Log.Level, cfg.Log.Format)
}

// bridgeOptions maps resolved configuration onto supervisor options.
func bridgeOptions(cfg *config.Config, logger *slog.Logger) bridge.Options {
	return bridge.Options{
		URL:            cfg.Bridge.URL,
		BundleDir:      cfg.Bridge.Dir,
		SchemaPath:     cfg.Bridge.SchemaPath,
		StartupTimeout: cfg.Bridge.StartupTimeout,
		StopGrace:      cfg.Bridge.StopGrace,
		InstallTimeout: cfg.Bridge.InstallTimeout,
		Logger:         logger,
	}
}
