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

package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	linksAddedCounter   metric.Int64Counter
	linksSkippedCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/stacrunner/internal/catalog")

	var err error
	linksAddedCounter, err = meter.Int64Counter(
		"stacrunner.merge.links.added",
		metric.WithDescription("Number of item links added to the collection"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create merge.links.added counter: %w", err))
	}

	linksSkippedCounter, err = meter.Int64Counter(
		"stacrunner.merge.links.skipped",
		metric.WithDescription("Number of duplicate item links skipped during merge"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create merge.links.skipped counter: %w", err))
	}
}

// MergeMode selects how items are folded into the collection.
type MergeMode int

const (
	// ModeAppend adds links only for item IDs not already present.
	ModeAppend MergeMode = iota
	// ModeRebuild clears all item links and materialized item files
	// before adding the given items.
	ModeRebuild
)

func (m MergeMode) String() string {
	if m == ModeRebuild {
		return "rebuild"
	}
	return "append"
}

// MergeStats summarizes one merge call.
type MergeStats struct {
	Added   int
	Skipped int
	Cleared int
}

// Merge folds items into the collection and persists the result. Links
// are deduplicated on item ID, so merging the same items any number of
// times leaves exactly one link per unique ID. Merge is single-threaded
// by contract; it is the only writer of the collection document.
func (s *Store) Merge(ctx context.Context, col *Collection, items []*Item, mode MergeMode) (MergeStats, error) {
	var stats MergeStats

	if mode == ModeRebuild {
		kept := col.Links[:0]
		for _, l := range col.Links {
			if l.Rel != RelItem {
				kept = append(kept, l)
			}
		}
		col.Links = kept

		removed, err := s.RemoveItemFiles()
		if err != nil {
			return stats, fmt.Errorf("clear item files: %w", err)
		}
		stats.Cleared = removed
		slog.Info("Rebuild merge: cleared existing items",
			slog.Int("removedFiles", removed))
	}

	existing := col.ItemIDs()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.WriteItem(item); err != nil {
			return stats, fmt.Errorf("write item %s: %w", item.ID, err)
		}
		if _, ok := existing[item.ID]; ok {
			stats.Skipped++
			continue
		}
		col.Links = append(col.Links, Link{
			Rel:  RelItem,
			Href: s.ItemHref(item.ID),
			Type: itemMediaType,
		})
		existing[item.ID] = struct{}{}
		stats.Added++
	}

	if err := s.SaveCollection(col); err != nil {
		return stats, fmt.Errorf("save collection: %w", err)
	}

	linksAddedCounter.Add(ctx, int64(stats.Added), metric.WithAttributes(
		attribute.String("mode", mode.String()),
	))
	linksSkippedCounter.Add(ctx, int64(stats.Skipped), metric.WithAttributes(
		attribute.String("mode", mode.String()),
	))

	return stats, nil
}
