// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/stacrunner/config"
)

func init() {
	var urlsFile string

	cmd := &cobra.Command{
		Use:   "detect-changes",
		Short: "Diff the source listing against the last snapshot",
		Long: `List the source bucket, diff it against the persisted snapshot, and
replace the snapshot. Exits 0 when changes were found, 2 when the
listing matches the snapshot, and 1 on error.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "stacrunner-detect-changes"
			doneCtx, doneFx, err := setupTelemetry(servicename, nil)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			start := time.Now()

			lister, err := newLister(doneCtx, cfg, urlsFile)
			if err != nil {
				return err
			}
			current, err := lister.List(doneCtx)
			if err != nil {
				return fmt.Errorf("failed to list source: %w", err)
			}
			assetsScannedCounter.Add(doneCtx, int64(current.Cardinality()))

			detector := changeDetector(cfg)
			diff, err := detector.Detect(doneCtx, current)
			if err != nil {
				return fmt.Errorf("failed to detect changes: %w", err)
			}

			runDuration.Record(doneCtx, time.Since(start).Seconds())

			if diff.Empty() {
				slog.Info("No changes detected",
					slog.Int("current", current.Cardinality()))
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
				os.Exit(exitNoChanges)
			}

			slog.Info("Changes detected",
				slog.Int("added", diff.Added.Cardinality()),
				slog.Int("removed", diff.Removed.Cardinality()),
				slog.Bool("firstRun", diff.FirstRun))
			return nil
		},
	}
	cmd.Flags().StringVar(&urlsFile, "urls-file", "", "Replay a newline-delimited identifier file instead of listing the bucket")
	rootCmd.AddCommand(cmd)
}
