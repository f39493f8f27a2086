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

// Package changedetect diffs a freshly retrieved asset listing against
// the persisted identifier snapshot and owns that snapshot exclusively.
package changedetect

import (
	"context"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	addedCounter   metric.Int64Counter
	removedCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/stacrunner/internal/changedetect")

	var err error
	addedCounter, err = meter.Int64Counter(
		"stacrunner.detect.assets.added",
		metric.WithDescription("Number of newly listed assets detected"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create detect.assets.added counter: %w", err))
	}

	removedCounter, err = meter.Int64Counter(
		"stacrunner.detect.assets.removed",
		metric.WithDescription("Number of assets missing from the latest listing"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create detect.assets.removed counter: %w", err))
	}
}

// Diff is the result of one detection run.
type Diff struct {
	Added   mapset.Set[string]
	Removed mapset.Set[string]
	// FirstRun is true when no prior snapshot existed; every current
	// identifier is reported as added.
	FirstRun bool
}

// Empty reports whether the listing is unchanged since the last run.
// Callers use it to short-circuit the rest of the pipeline.
func (d Diff) Empty() bool {
	return d.Added.Cardinality() == 0 && d.Removed.Cardinality() == 0
}

// Detector computes listing diffs against a snapshot store.
type Detector struct {
	store *SnapshotStore
}

// NewDetector returns a detector over the given snapshot store.
func NewDetector(store *SnapshotStore) *Detector {
	return &Detector{store: store}
}

// Detect diffs current against the persisted snapshot and, on success,
// replaces the snapshot with current. The caller must only pass a
// complete listing; a failed or partial listing retrieval is fatal
// upstream and never reaches this point.
func (d *Detector) Detect(ctx context.Context, current mapset.Set[string]) (Diff, error) {
	previous, exists, err := d.store.Load()
	if err != nil {
		return Diff{}, fmt.Errorf("load snapshot: %w", err)
	}

	diff := Diff{
		Added:    current.Difference(previous),
		Removed:  previous.Difference(current),
		FirstRun: !exists,
	}

	if err := d.store.Replace(current, diff.Added, diff.Removed); err != nil {
		return Diff{}, fmt.Errorf("persist snapshot: %w", err)
	}

	addedCounter.Add(ctx, int64(diff.Added.Cardinality()))
	removedCounter.Add(ctx, int64(diff.Removed.Cardinality()))

	slog.Info("Change detection complete",
		slog.Int("current", current.Cardinality()),
		slog.Int("added", diff.Added.Cardinality()),
		slog.Int("removed", diff.Removed.Cardinality()),
		slog.Bool("firstRun", diff.FirstRun))

	return diff, nil
}
