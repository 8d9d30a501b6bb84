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

// Package initcmd implements `outboard init`: scaffolding a project's
// schema.outboard and outboard.yaml, interactively when a terminal is
// attached and flag-driven otherwise.
package initcmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/outboardhq/outboard/internal/commands/shared"
	"github.com/outboardhq/outboard/internal/config"
	"github.com/outboardhq/outboard/internal/schema"
)

var providers = []string{"postgresql", "mysql", "sqlite"}

// options carries the answers init needs, from flags or the form.
type options struct {
	dir           string
	bridgeURL     string
	provider      string
	datasourceURL string
	force         bool
}

// NewCommand creates the init command.
func NewCommand() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold an outboard project",
		Long: `Create schema.outboard and outboard.yaml in the target directory.

Runs an interactive form when attached to a terminal; in scripts and CI
the flags (with their defaults) are used as-is.`,
		Example: `  # Interactive setup in the current directory
  outboard init

  # Non-interactive, for scripts
  outboard init --provider postgresql --datasource-url "$DATABASE_URL"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !contains(providers, opts.provider) {
				return fmt.Errorf("unknown provider %q (one of %s)", opts.provider, strings.Join(providers, ", "))
			}
			if err := validateBridgeURL(opts.bridgeURL); err != nil {
				return err
			}

			if !shared.IsNonInteractive() {
				if err := runForm(&opts); err != nil {
					return err
				}
			}
			return runInit(opts)
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Target directory")
	cmd.Flags().StringVar(&opts.bridgeURL, "url", config.DefaultBridgeURL, "Bridge URL written to outboard.yaml")
	cmd.Flags().StringVar(&opts.provider, "provider", "postgresql", "Datasource provider: postgresql, mysql, or sqlite")
	cmd.Flags().StringVar(&opts.datasourceURL, "datasource-url", "", "Datasource URL (default: env(\"DATABASE_URL\") reference)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite existing files")

	return cmd
}

// runForm collects the options interactively, seeded with flag values.
func runForm(opts *options) error {
	confirm := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bridge URL").
				Description("Where applications reach the query-engine bridge.").
				Value(&opts.bridgeURL).
				Validate(validateBridgeURL),
			huh.NewSelect[string]().
				Title("Datasource provider").
				Options(
					huh.NewOption("PostgreSQL", "postgresql"),
					huh.NewOption("MySQL", "mysql"),
					huh.NewOption("SQLite", "sqlite"),
				).
				Value(&opts.provider),
			huh.NewInput().
				Title("Datasource URL").
				Description("Leave empty to reference env(\"DATABASE_URL\") instead.").
				Value(&opts.datasourceURL),
			huh.NewConfirm().
				Title("Write schema.outboard and outboard.yaml?").
				Affirmative("Yes, write them").
				Negative("Cancel").
				Value(&confirm),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("init cancelled")
	}
	return nil
}

func runInit(opts options) error {
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return err
	}

	schemaPath := filepath.Join(opts.dir, schema.DefaultFileName)
	configPath := filepath.Join(opts.dir, "outboard.yaml")

	if err := writeScaffold(schemaPath, schemaTemplate(opts), opts.force); err != nil {
		return err
	}
	if err := writeScaffold(configPath, configTemplate(opts), opts.force); err != nil {
		return err
	}

	fmt.Println(shared.RenderOK("created " + schemaPath))
	fmt.Println(shared.RenderOK("created " + configPath))
	fmt.Println()
	fmt.Println(shared.Header.Render("Next steps"))
	if opts.datasourceURL == "" {
		fmt.Println(shared.RenderKV("1", "export DATABASE_URL=<your database url>"))
		fmt.Println(shared.RenderKV("2", "edit "+schemaPath+" to describe your data"))
		fmt.Println(shared.RenderKV("3", "outboard bridge start"))
	} else {
		fmt.Println(shared.RenderKV("1", "edit "+schemaPath+" to describe your data"))
		fmt.Println(shared.RenderKV("2", "outboard bridge start"))
	}
	return nil
}

// writeScaffold writes content to path, refusing to clobber existing work
// unless forced.
func writeScaffold(path, content string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func schemaTemplate(opts options) string {
	dsURL := `env("DATABASE_URL")`
	if opts.datasourceURL != "" {
		dsURL = fmt.Sprintf("%q", opts.datasourceURL)
	}

	return fmt.Sprintf(`// schema.outboard: data model served by the bridge.
//
// The bridge loads this file at startup. During development,
// `+"`outboard bridge start --foreground --watch`"+` restarts the
// bridge whenever it changes.

datasource db {
  provider = %q
  url      = %s
}
`, opts.provider, dsURL)
}

func configTemplate(opts options) string {
	return fmt.Sprintf(`# outboard.yaml: project configuration.
# Environment variables (OUTBOARD_*) override these values.

bridge:
  url: %s
  auto_start: true
  # dir: ./outboard-bridge        # bundle location, discovered when unset
  # schema_path: ./schema.outboard
  # startup_timeout: 30s

engine:
  # connect_timeout: 10s
  log_queries: false

log:
  level: info
  format: text
`, opts.bridgeURL)
}

func validateBridgeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("bridge URL must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("bridge URL needs a host")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
