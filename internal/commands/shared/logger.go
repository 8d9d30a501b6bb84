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

package shared

import (
	"log/slog"

	"github.com/outboardhq/outboard/internal/log"
)

// NewLogger builds the logger commands hand to the runtime packages.
// Environment defaults come first, then config-file settings, then the
// global flags: --verbose lowers the level to debug, --quiet raises it
// to error.
func NewLogger(cfgLevel, cfgFormat string) *slog.Logger {
	logCfg := log.FromEnv()
	if cfgLevel != "" {
		logCfg.Level = cfgLevel
	}
	if cfgFormat != "" {
		logCfg.Format = log.Format(cfgFormat)
	}
	if GetVerbose() {
		logCfg.Level = "debug"
	}
	if GetQuiet() {
		logCfg.Level = "error"
	}
	return log.New(logCfg)
}
