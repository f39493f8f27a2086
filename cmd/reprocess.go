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
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/stacrunner/config"
	"github.com/cardinalhq/stacrunner/internal/assetid"
	"github.com/cardinalhq/stacrunner/internal/catalog"
	"github.com/cardinalhq/stacrunner/internal/extractor"
)

func init() {
	var (
		idsFile       string
		trial         bool
		forceValidate bool
	)

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Rebuild specific items from a list of item IDs",
		Long: `Re-run validation and extraction for the item IDs named in --ids-file
and merge the rebuilt items into the collection. Asset URLs are
recovered from the item IDs, so only items produced by this tool can be
reprocessed.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "stacrunner-reprocess"
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

			itemIDs, err := readLines(idsFile)
			if err != nil {
				return fmt.Errorf("failed to read ids file: %w", err)
			}
			if len(itemIDs) == 0 {
				return fmt.Errorf("ids file %s is empty", idsFile)
			}

			prefix := sourcePrefix(cfg)
			ids := make([]string, 0, len(itemIDs))
			for _, itemID := range itemIDs {
				ids = append(ids, assetid.URLForItemID(prefix, itemID))
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
				return fmt.Errorf("failed to load collection: %w", err)
			}

			results := newItemBuilder(cfg, store).BuildItems(doneCtx, ids, records)
			summary := extractor.Summarize(results)

			items := make([]*catalog.Item, 0, summary.Succeeded)
			var datetimeUnknown int
			for _, r := range results {
				if r.Item != nil {
					items = append(items, r.Item)
					if r.Item.Properties.DatetimeUnknown {
						datetimeUnknown++
					}
				}
			}

			stats, err := store.Merge(doneCtx, col, items, catalog.ModeAppend)
			if err != nil {
				return fmt.Errorf("failed to merge items: %w", err)
			}

			runDuration.Record(doneCtx, time.Since(start).Seconds())
			slog.Info("Reprocess complete",
				slog.String("target", target.String()),
				slog.Int("requested", len(itemIDs)),
				slog.Int("succeeded", summary.Succeeded),
				slog.Int("skipped", summary.Skipped),
				slog.Int("failed", summary.Failed),
				slog.Int("datetimeUnknown", datetimeUnknown),
				slog.Int("linksAdded", stats.Added))

			if summary.Failures != nil {
				return fmt.Errorf("%d of %d items failed: %w", summary.Failed, len(itemIDs), summary.Failures)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&idsFile, "ids-file", "", "Newline-delimited file of item IDs to rebuild")
	_ = cmd.MarkFlagRequired("ids-file")
	cmd.Flags().BoolVar(&trial, "trial", false, "Write to the disposable trial root instead of the durable one")
	cmd.Flags().BoolVar(&forceValidate, "force-validate", false, "Re-check assets even when a cached verdict exists")
	rootCmd.AddCommand(cmd)
}

// readLines reads a newline-delimited file, trimming whitespace and
// dropping blank lines.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
