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

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	outerrors "github.com/outboardhq/outboard/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default endpoint and timing values. The bridge listens on localhost:4466
// unless told otherwise; polling and grace periods follow the bridge's own
// startup characteristics.
const (
	DefaultBridgeURL      = "http://localhost:4466"
	DefaultConnectTimeout = 10 * time.Second
	DefaultStartupTimeout = 30 * time.Second
	DefaultStopGrace      = 5 * time.Second
	DefaultInstallTimeout = 10 * time.Minute
	DefaultPollInterval   = 100 * time.Millisecond
)

// ProjectConfigName is the per-project config file looked up in the working
// directory before falling back to the user-level XDG config.
const ProjectConfigName = "outboard.yaml"

// Config represents the complete Outboard runtime configuration.
type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

// BridgeConfig configures how the bridge process is located, started, and
// stopped.
type BridgeConfig struct {
	// URL is the base service URL of the bridge.
	// Environment: OUTBOARD_BRIDGE_URL
	// Default: http://localhost:4466
	URL string `yaml:"url,omitempty"`

	// AutoStart enables starting a bridge automatically when none is
	// reachable. "false", "0" and "no" (any case) disable it via env.
	// Environment: OUTBOARD_BRIDGE_AUTO_START
	// Default: true
	AutoStart bool `yaml:"auto_start"`

	// Dir overrides the bridge bundle search with an explicit directory.
	// Environment: OUTBOARD_BRIDGE_DIR
	Dir string `yaml:"dir,omitempty"`

	// SchemaPath points at the schema file handed to the bridge at spawn.
	// When empty the conventional locations are searched.
	// Environment: OUTBOARD_SCHEMA_PATH
	SchemaPath string `yaml:"schema_path,omitempty"`

	// StartupTimeout bounds the wait for a spawned bridge to become ready.
	// Default: 30s
	StartupTimeout time.Duration `yaml:"startup_timeout,omitempty"`

	// StopGrace is how long a stopping bridge gets between SIGTERM and SIGKILL.
	// Default: 5s
	StopGrace time.Duration `yaml:"stop_grace,omitempty"`

	// InstallTimeout bounds the dependency install on first start.
	// Default: 10m
	InstallTimeout time.Duration `yaml:"install_timeout,omitempty"`
}

// EngineConfig configures engine facade behavior.
type EngineConfig struct {
	// ConnectTimeout bounds Connect, including any auto-start work.
	// Environment: OUTBOARD_CONNECT_TIMEOUT
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`

	// LogQueries emits query payloads at trace level when true.
	LogQueries bool `yaml:"log_queries"`
}

// LogConfig configures CLI logging.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty"`

	// Format is the log format (text, json).
	Format string `yaml:"format,omitempty"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			URL:            DefaultBridgeURL,
			AutoStart:      true,
			StartupTimeout: DefaultStartupTimeout,
			StopGrace:      DefaultStopGrace,
			InstallTimeout: DefaultInstallTimeout,
		},
		Engine: EngineConfig{
			ConnectTimeout: DefaultConnectTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// FromEnv returns the default configuration with environment overrides
// applied, skipping config-file discovery. Library entry points use this;
// the CLI goes through Load.
func FromEnv() *Config {
	cfg := Default()
	cfg.loadFromEnv()
	return cfg
}

// Load builds the effective configuration: defaults, then the config file,
// then environment overrides, then validation.
//
// An empty configPath means discovery: ./outboard.yaml if present, otherwise
// the user-level config under the XDG config directory, otherwise file-less.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	path, required := configPath, configPath != ""
	if path == "" {
		path = discoverConfigFile()
	}

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			if required || !os.IsNotExist(err) {
				return nil, &outerrors.ConfigError{
					Key:    "config_file",
					Reason: fmt.Sprintf("failed to load from %s", path),
					Cause:  err,
				}
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// discoverConfigFile returns the first config file found in the conventional
// locations, or empty when none exists.
func discoverConfigFile() string {
	if _, err := os.Stat(ProjectConfigName); err == nil {
		return ProjectConfigName
	}
	if path, err := ConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return path
		}
	}
	return ""
}

// applyDefaults fills in zero values with defaults. This allows minimal
// config files to work without specifying all fields explicitly.
func (c *Config) applyDefaults() {
	if c.Bridge.URL == "" {
		c.Bridge.URL = DefaultBridgeURL
	}
	if c.Bridge.StartupTimeout == 0 {
		c.Bridge.StartupTimeout = DefaultStartupTimeout
	}
	if c.Bridge.StopGrace == 0 {
		c.Bridge.StopGrace = DefaultStopGrace
	}
	if c.Bridge.InstallTimeout == 0 {
		c.Bridge.InstallTimeout = DefaultInstallTimeout
	}
	if c.Engine.ConnectTimeout == 0 {
		c.Engine.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
// Environment always wins over file values.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("OUTBOARD_BRIDGE_URL"); val != "" {
		c.Bridge.URL = val
	}
	if val := os.Getenv("OUTBOARD_BRIDGE_AUTO_START"); val != "" {
		c.Bridge.AutoStart = ParseBool(val)
	}
	if val := os.Getenv("OUTBOARD_BRIDGE_DIR"); val != "" {
		c.Bridge.Dir = val
	}
	if val := os.Getenv("OUTBOARD_SCHEMA_PATH"); val != "" {
		c.Bridge.SchemaPath = val
	}
	if val := os.Getenv("OUTBOARD_CONNECT_TIMEOUT"); val != "" {
		if d, err := parseDuration(val); err == nil {
			c.Engine.ConnectTimeout = d
		}
	}
	if val := os.Getenv("OUTBOARD_STARTUP_TIMEOUT"); val != "" {
		if d, err := parseDuration(val); err == nil {
			c.Bridge.StartupTimeout = d
		}
	}
	if val := os.Getenv("OUTBOARD_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Bridge.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &outerrors.ConfigError{
			Key:    "bridge.url",
			Reason: fmt.Sprintf("%q is not a valid URL", c.Bridge.URL),
			Cause:  err,
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &outerrors.ConfigError{
			Key:    "bridge.url",
			Reason: fmt.Sprintf("unsupported scheme %q (http or https)", u.Scheme),
		}
	}

	for key, d := range map[string]time.Duration{
		"bridge.startup_timeout": c.Bridge.StartupTimeout,
		"bridge.stop_grace":      c.Bridge.StopGrace,
		"bridge.install_timeout": c.Bridge.InstallTimeout,
		"engine.connect_timeout": c.Engine.ConnectTimeout,
	} {
		if d <= 0 {
			return &outerrors.ConfigError{
				Key:    key,
				Reason: "must be positive",
			}
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return &outerrors.ConfigError{
			Key:    "log.level",
			Reason: fmt.Sprintf("unknown level %q", c.Log.Level),
		}
	}

	return nil
}

// ParseBool interprets enable/disable strings the way the runtime documents
// them: "false", "0" and "no" disable, anything else enables.
func ParseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "false", "0", "no":
		return false
	default:
		return true
	}
}

// parseDuration accepts Go duration strings and, for convenience, bare
// integers interpreted as seconds.
func parseDuration(val string) (time.Duration, error) {
	if d, err := time.ParseDuration(val); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", val)
	}
	return time.Duration(secs) * time.Second, nil
}
