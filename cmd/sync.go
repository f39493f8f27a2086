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
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/stacrunner/config"
	"github.com/cardinalhq/stacrunner/internal/catalog"
	"github.com/cardinalhq/stacrunner/internal/extractor"
)

func init() {
	var (
		urlsFile      string
		full          bool
		trial         bool
		limit         int
		forceValidate bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Bring the catalog up to date with the source bucket",
		Long: `Run the full pipeline: list the source, diff against the snapshot,
validate new assets, extract their metadata, and merge the resulting
items into the collection. By default only assets added since the last
run are processed; --full reprocesses the entire listing and rebuilds
the collection's item links from scratch.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "stacrunner-sync"
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
			target := catalogTarget(trial)

			lister, err := newLister(doneCtx, cfg, urlsFile)
			if err != nil {
				return err
			}
			current, err := lister.List(doneCtx)
			if err != nil {
				return fmt.Errorf("failed to list source: %w", err)
			}
			assetsScannedCounter.Add(doneCtx, int64(current.Cardinality()))

			diff, err := changeDetector(cfg).Detect(doneCtx, current)
			if err != nil {
				return fmt.Errorf("failed to detect changes: %w", err)
			}
			if !full && diff.Empty() {
				slog.Info("No changes detected, nothing to sync",
					slog.Int("current", current.Cardinality()))
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
				os.Exit(exitNoChanges)
			}
			if diff.Removed.Cardinality() > 0 && !full {
				slog.Warn("Source removed assets; run with --full to drop their items",
					slog.Int("removed", diff.Removed.Cardinality()))
			}

			ids := diff.Added.ToSlice()
			if full {
				ids = current.ToSlice()
			}
			sort.Strings(ids)
			if limit > 0 && len(ids) > limit {
				slog.Info("Limiting run", slog.Int("limit", limit), slog.Int("pending", len(ids)))
				ids = ids[:limit]
			}

			vstore, err := openValidationStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = vstore.Close() }()

			records, err := newValidationBatch(cfg, vstore).Validate(doneCtx, ids, forceValidate)
			if err != nil {
				return fmt.Errorf("validation run failed: %w", err)
			}

			store := openCatalogStore(cfg, target)
			col, err := store.LoadCollection()
			if err != nil {
				return fmt.Errorf("failed to load collection (run init-collection first?): %w", err)
			}

			results := newItemBuilder(cfg, store).BuildItems(doneCtx, ids, records)
			summary := extractor.Summarize(results)

			items := make([]*catalog.Item, 0, summary.Succeeded)
			for _, r := range results {
				if r.Item != nil {
					items = append(items, r.Item)
				}
			}

			mode := catalog.ModeAppend
			if full {
				mode = catalog.ModeRebuild
			}
			stats, err := store.Merge(doneCtx, col, items, mode)
			if err != nil {
				return fmt.Errorf("failed to merge items: %w", err)
			}

			runDuration.Record(doneCtx, time.Since(start).Seconds())
			slog.Info("Sync complete",
				slog.String("target", target.String()),
				slog.String("mode", mode.String()),
				slog.Int("succeeded", summary.Succeeded),
				slog.Int("skipped", summary.Skipped),
				slog.Int("failed", summary.Failed),
				slog.Int("linksAdded", stats.Added),
				slog.Int("linksSkipped", stats.Skipped))

			if summary.Failures != nil {
				slog.Error("Some assets failed", slog.Any("error", summary.Failures))
				return fmt.Errorf("%d of %d assets failed: %w", summary.Failed, len(ids), summary.Failures)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&urlsFile, "urls-file", "", "Replay a newline-delimited identifier file instead of listing the bucket")
	cmd.Flags().BoolVar(&full, "full", false, "Reprocess every asset and rebuild the collection's item links")
	cmd.Flags().BoolVar(&trial, "trial", false, "Write to the disposable trial root instead of the durable one")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most this many assets (0 = no limit)")
	cmd.Flags().BoolVar(&forceValidate, "force-validate", false, "Re-check assets even when a cached verdict exists")
	rootCmd.AddCommand(cmd)
}
