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

// Package extractor builds catalog item records from raster assets over
// a bounded worker pool. Each unit of work returns a tagged
// success/failure value; one bad asset never aborts its siblings, and
// nothing here mutates the catalog document or the validation cache.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/stacrunner/internal/assetid"
	"github.com/cardinalhq/stacrunner/internal/catalog"
	"github.com/cardinalhq/stacrunner/internal/validcache"
)

const defaultWorkers = 32

// placeholderTime stands in for items whose acquisition date cannot be
// derived from the asset path; such items carry datetime_unknown.
var placeholderTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

var itemsCounter metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/stacrunner/internal/extractor")

	var err error
	itemsCounter, err = meter.Int64Counter(
		"stacrunner.extract.items",
		metric.WithDescription("Number of extraction results by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.items counter: %w", err))
	}
}

// Result is the outcome of building one item. Exactly one of Item, Err,
// or Skipped is meaningful; callers distinguish by field, not by
// exceptions crossing the pool boundary.
type Result struct {
	Identifier string
	Item       *catalog.Item
	Err        error
	Skipped    bool
}

// Summary aggregates a batch of results into run-level counts.
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
	Failures  error
}

// Summarize folds results into a Summary, collecting per-asset failures
// into one multierror for reporting.
func Summarize(results []Result) Summary {
	var s Summary
	var failures *multierror.Error
	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Err != nil:
			s.Failed++
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", r.Identifier, r.Err))
		default:
			s.Succeeded++
		}
	}
	s.Failures = failures.ErrorOrNil()
	return s
}

// Builder turns asset identifiers into catalog item records.
type Builder struct {
	reader         RasterReader
	workers        int
	collectionID   string
	collectionHref string
	sourcePrefix   string
}

// BuilderConfig carries the catalog identity an item is built against.
type BuilderConfig struct {
	CollectionID   string
	CollectionHref string
	// SourcePrefix is the asset URL prefix stripped when deriving item IDs.
	SourcePrefix string
	Workers      int
}

// NewBuilder returns a builder reading raster metadata through reader.
func NewBuilder(reader RasterReader, cfg BuilderConfig) *Builder {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Builder{
		reader:         reader,
		workers:        workers,
		collectionID:   cfg.CollectionID,
		collectionHref: cfg.CollectionHref,
		sourcePrefix:   cfg.SourcePrefix,
	}
}

// BuildItems builds one item per identifier concurrently, preserving
// submission order in the result slice. Identifiers whose validation
// verdict is unreadable are skipped before any extraction work; a
// failure while processing one identifier is recorded in its slot and
// never aborts sibling work.
func (b *Builder) BuildItems(ctx context.Context, identifiers []string, validations map[string]validcache.Record) []Result {
	results := make([]Result, len(identifiers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, id := range identifiers {
		results[i].Identifier = id

		rec, ok := validations[assetid.Normalize(id)]
		if !ok || !rec.IsReadable {
			results[i].Skipped = true
			slog.Warn("Skipping unreadable raster", slog.String("identifier", id))
			itemsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			item, err := b.buildOne(gctx, id, rec)
			if err != nil {
				slog.Error("Failed to build item",
					slog.String("identifier", id),
					slog.Any("error", err))
				results[i].Err = err
				itemsCounter.Add(gctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
				return nil
			}
			results[i].Item = item
			itemsCounter.Add(gctx, 1, metric.WithAttributes(attribute.String("outcome", "built")))
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()
	return results
}

// buildOne assembles the catalog item record for a single readable
// asset. The item ID is a pure function of the identifier so repeated
// runs merge idempotently.
func (b *Builder) buildOne(ctx context.Context, identifier string, rec validcache.Record) (item *catalog.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			item = nil
			err = fmt.Errorf("panic while building item: %v", r)
		}
	}()

	href := assetid.Normalize(identifier)
	md, err := b.reader.ReadMetadata(ctx, href)
	if err != nil {
		return nil, err
	}

	item = catalog.NewItem(assetid.ItemID(b.sourcePrefix, identifier), b.collectionID)
	item.Geometry = md.Geometry
	item.BBox = md.BBox
	item.Properties.ProjEPSG = md.EPSG

	if ts, ok := assetid.TimeFromPath(identifier); ok {
		item.Properties.Datetime = ts
	} else {
		item.Properties.Datetime = placeholderTime
		item.Properties.DatetimeUnknown = true
	}

	mediaType := catalog.MediaTypeGeoTIFF
	if rec.IsCompliant {
		mediaType = catalog.MediaTypeCOG
	}
	item.Assets["image"] = catalog.Asset{
		Href:  href,
		Type:  mediaType,
		Roles: []string{"data"},
	}
	item.Links = append(item.Links,
		catalog.Link{Rel: "collection", Href: b.collectionHref, Type: "application/json"},
		catalog.Link{Rel: "parent", Href: b.collectionHref, Type: "application/json"},
	)

	return item, nil
}
