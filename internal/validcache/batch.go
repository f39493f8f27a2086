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

package validcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 16

var (
	cacheHitCounter  metric.Int64Counter
	liveCheckCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/stacrunner/internal/validcache")

	var err error
	cacheHitCounter, err = meter.Int64Counter(
		"stacrunner.validate.cache.hits",
		metric.WithDescription("Number of validation requests served from the cache"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create validate.cache.hits counter: %w", err))
	}

	liveCheckCounter, err = meter.Int64Counter(
		"stacrunner.validate.checks",
		metric.WithDescription("Number of live format checks performed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create validate.checks counter: %w", err))
	}
}

// Batch validates identifier sets against the cache, performing live
// checks only for identifiers with no current record (or for all of
// them under force).
type Batch struct {
	store   Store
	checker Checker
	workers int
}

// NewBatch returns a batch validator. workers <= 0 selects the default
// pool size.
func NewBatch(store Store, checker Checker, workers int) *Batch {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Batch{store: store, checker: checker, workers: workers}
}

// Validate returns the full record mapping for identifiers: cached
// records are reused unless force is set, everything else is checked
// live over a bounded worker pool and written back to the cache. An
// unreadable asset is a recorded verdict, never an error; a validator
// that fails to execute is an error, never a verdict. Verdicts
// completed before such a failure are still persisted. Workers only
// compute verdicts; this coordinator is the sole cache writer.
func (b *Batch) Validate(ctx context.Context, identifiers []string, force bool) (map[string]Record, error) {
	out := make(map[string]Record, len(identifiers))

	var pending []string
	for _, id := range identifiers {
		if !force {
			rec, ok, err := b.store.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("cache lookup %s: %w", id, err)
			}
			if ok {
				out[id] = rec
				cacheHitCounter.Add(ctx, 1)
				continue
			}
		}
		pending = append(pending, id)
	}

	slog.Info("Validation batch",
		slog.Int("requested", len(identifiers)),
		slog.Int("cached", len(identifiers)-len(pending)),
		slog.Int("pending", len(pending)),
		slog.Bool("force", force))

	if len(pending) == 0 {
		return out, nil
	}

	results := make([]Record, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, id := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := b.checkOne(gctx, id)
			if err != nil {
				return err
			}
			results[i] = rec
			return nil
		})
	}
	waitErr := g.Wait()

	// Persist every completed verdict, even when the run was cancelled
	// mid-batch; abandoned slots have an empty identifier. Writes go
	// through an uncancelled context so the cache stays consistent.
	persistCtx := context.WithoutCancel(ctx)
	for _, rec := range results {
		if rec.Identifier == "" {
			continue
		}
		if err := b.store.Put(persistCtx, rec); err != nil {
			return nil, fmt.Errorf("cache write %s: %w", rec.Identifier, err)
		}
		out[rec.Identifier] = rec
	}

	if waitErr != nil {
		return nil, waitErr
	}
	return out, nil
}

// checkOne performs one live check. A verdict is only ever recorded
// from validator output: if the validator could not run at all (binary
// missing, spawn failure), no classification exists and the error is
// fatal to the batch rather than cached as unreadable.
func (b *Batch) checkOne(ctx context.Context, identifier string) (Record, error) {
	output, err := b.checker.Check(ctx, identifier)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-check: abandon, do not record a verdict.
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("format check %s: %w", identifier, err)
	}

	rec := Record{Identifier: identifier, CheckedAt: time.Now().UTC()}
	rec.IsReadable, rec.IsCompliant = Classify(output)
	liveCheckCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeLabel(rec))))
	return rec, nil
}

func outcomeLabel(rec Record) string {
	switch {
	case rec.IsCompliant:
		return "compliant"
	case rec.IsReadable:
		return "readable"
	default:
		return "unreadable"
	}
}
