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
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/stacrunner/config"
)

func init() {
	var (
		urlsFile string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run format validation over the current listing",
		Long: `Check every asset in the current listing for readability and format
compliance, reusing cached verdicts unless --force is given.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "stacrunner-validate"
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

			store, err := openValidationStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ids := current.ToSlice()
			sort.Strings(ids)

			records, err := newValidationBatch(cfg, store).Validate(doneCtx, ids, force)
			if err != nil {
				return fmt.Errorf("validation run failed: %w", err)
			}

			var readable, compliant int
			for _, rec := range records {
				if rec.IsReadable {
					readable++
				}
				if rec.IsCompliant {
					compliant++
				}
			}
			runDuration.Record(doneCtx, time.Since(start).Seconds())
			slog.Info("Validation run complete",
				slog.Int("checked", len(records)),
				slog.Int("readable", readable),
				slog.Int("compliant", compliant),
				slog.Int("unreadable", len(records)-readable))
			return nil
		},
	}
	cmd.Flags().StringVar(&urlsFile, "urls-file", "", "Replay a newline-delimited identifier file instead of listing the bucket")
	cmd.Flags().BoolVar(&force, "force", false, "Re-check assets even when a cached verdict exists")
	rootCmd.AddCommand(cmd)
}
