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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outboardhq/outboard/internal/cli"
	"github.com/outboardhq/outboard/internal/commands/bridge"
	"github.com/outboardhq/outboard/internal/commands/initcmd"
	"github.com/outboardhq/outboard/internal/commands/metrics"
	versioncmd "github.com/outboardhq/outboard/internal/commands/version"
	"github.com/outboardhq/outboard/internal/lifecycle"
	"github.com/outboardhq/outboard/internal/tracing"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Ctrl-C and SIGTERM cancel the command's context so long-running
	// commands (bridge start --foreground, logs -f) can clean up.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional stdout tracing, enabled via OUTBOARD_TRACE.
	provider, err := tracing.SetupFromEnv("outboard", version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: tracing setup failed: %v\n", err)
	}
	defer func() {
		if provider != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}
	}()

	// Set version information from build-time ldflags
	cli.SetVersion(version, commit, buildDate)

	// Create root command and add subcommands
	rootCmd := cli.NewRootCommand()

	// Project scaffolding
	rootCmd.AddCommand(initcmd.NewCommand())

	// Bridge process management
	rootCmd.AddCommand(bridge.NewCommand())

	// Diagnostics
	rootCmd.AddCommand(metrics.NewCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	// Execute root command
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		lifecycle.RunShutdownHooks()
		cli.HandleExitError(err)
	}

	lifecycle.RunShutdownHooks()
}
