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

package changedetect

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFirstRunReportsAllAdded(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	detector := NewDetector(store)

	current := mapset.NewSet("a", "b", "c")
	diff, err := detector.Detect(context.Background(), current)
	require.NoError(t, err)

	assert.True(t, diff.FirstRun)
	assert.True(t, diff.Added.Equal(current))
	assert.Equal(t, 0, diff.Removed.Cardinality())
}

func TestDetectAddedAndRemoved(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	detector := NewDetector(store)
	ctx := context.Background()

	_, err := detector.Detect(ctx, mapset.NewSet("A", "B", "C"))
	require.NoError(t, err)

	diff, err := detector.Detect(ctx, mapset.NewSet("B", "C", "D"))
	require.NoError(t, err)

	assert.True(t, diff.Added.Equal(mapset.NewSet("D")))
	assert.True(t, diff.Removed.Equal(mapset.NewSet("A")))
	assert.False(t, diff.FirstRun)

	// The new snapshot is exactly the current listing.
	persisted, exists, err := store.Load()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, persisted.Equal(mapset.NewSet("B", "C", "D")))
}

func TestDetectAddedRemovedAreDisjoint(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	detector := NewDetector(store)
	ctx := context.Background()

	_, err := detector.Detect(ctx, mapset.NewSet("a", "b", "x", "y"))
	require.NoError(t, err)
	diff, err := detector.Detect(ctx, mapset.NewSet("b", "c", "y", "z"))
	require.NoError(t, err)

	assert.Equal(t, 0, diff.Added.Intersect(diff.Removed).Cardinality())
}

func TestDetectNoChanges(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	detector := NewDetector(store)
	ctx := context.Background()

	current := mapset.NewSet("a", "b")
	_, err := detector.Detect(ctx, current)
	require.NoError(t, err)

	diff, err := detector.Detect(ctx, current)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestSnapshotDeltaFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir)
	detector := NewDetector(store)
	ctx := context.Background()

	_, err := detector.Detect(ctx, mapset.NewSet("A", "B", "C"))
	require.NoError(t, err)
	_, err = detector.Detect(ctx, mapset.NewSet("B", "C", "D"))
	require.NoError(t, err)

	added, err := store.LoadAdded()
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, added)

	removed, err := store.LoadRemoved()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, removed)
}

func TestSnapshotFilesAreSorted(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir)
	require.NoError(t, store.Replace(mapset.NewSet("z", "a", "m"), mapset.NewSet[string](), mapset.NewSet[string]()))

	data, err := os.ReadFile(filepath.Join(dir, "identifiers.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\nm\nz\n", string(data))
}

func TestSnapshotLoadMissing(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	ids, exists, err := store.Load()
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, ids.Cardinality())
}

func TestSnapshotIgnoresBlankLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "identifiers.txt"), []byte("a\n\nb\n"), 0o644))
	store := NewSnapshotStore(dir)

	ids, exists, err := store.Load()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, ids.Equal(mapset.NewSet("a", "b")))
}
