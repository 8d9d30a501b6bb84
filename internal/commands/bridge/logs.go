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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/outboardhq/outboard/internal/bridge"
	"github.com/outboardhq/outboard/internal/commands/shared"
)

const followPollInterval = 500 * time.Millisecond

func newLogsCommand() *cobra.Command {
	var (
		lines  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the bridge log",
		Long: `Print the log of a background bridge.

Detached bridges write stdout and stderr to a log file in the state
directory. The file survives bridge stops so crashes can be inspected
afterwards.`,
		Example: `  # Last 50 lines
  outboard bridge logs

  # Whole file
  outboard bridge logs -n 0

  # Follow new output
  outboard bridge logs -f`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := bridge.LogPath()
			if err != nil {
				return err
			}
			return runLogs(cmd.Context(), path, lines, follow)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print (0 for the whole file)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing as the bridge writes more")

	return cmd
}

func runLogs(ctx context.Context, path string, lines int, follow bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println(shared.Muted.Render("no bridge log yet; it appears after `outboard bridge start`"))
			return nil
		}
		return err
	}

	os.Stdout.WriteString(tailLines(string(data), lines))

	if !follow {
		return nil
	}
	return followFile(ctx, path, int64(len(data)))
}

// tailLines returns the last n lines of text (all of it when n <= 0).
func tailLines(text string, n int) string {
	if n <= 0 || text == "" {
		return text
	}

	// Trailing newline does not start a new line.
	trimmed := strings.TrimSuffix(text, "\n")
	split := strings.Split(trimmed, "\n")
	if len(split) <= n {
		return text
	}
	return strings.Join(split[len(split)-n:], "\n") + "\n"
}

// followFile polls the log for growth and streams new bytes to stdout.
// A file that shrank was rotated or truncated; reading restarts from the top.
func followFile(ctx context.Context, path string, offset int64) error {
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if info.Size() == offset {
			continue
		}
		if info.Size() < offset {
			offset = 0
		}

		n, err := copyFrom(path, offset)
		if err != nil {
			return err
		}
		offset += n
	}
}

func copyFrom(path string, offset int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	return io.Copy(os.Stdout, f)
}
