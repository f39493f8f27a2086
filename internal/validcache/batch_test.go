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
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker returns canned validator output (or a canned execution
// error) per identifier and counts live checks.
type fakeChecker struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   atomic.Int64
}

func (f *fakeChecker) Check(_ context.Context, identifier string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[identifier]; err != nil {
		return "", err
	}
	return f.outputs[identifier], nil
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "validation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClassify(t *testing.T) {
	readable, compliant := Classify("asset.tif is a valid cloud optimized GeoTIFF")
	assert.True(t, readable)
	assert.True(t, compliant)

	readable, compliant = Classify("asset.tif is NOT a valid cloud optimized GeoTIFF")
	assert.True(t, readable)
	assert.False(t, compliant)

	readable, compliant = Classify("ERROR: could not open dataset")
	assert.False(t, readable)
	assert.False(t, compliant)

	readable, compliant = Classify("")
	assert.False(t, readable)
	assert.False(t, compliant)
}

func TestValidateClassifiesThreeWays(t *testing.T) {
	store := newTestStore(t)
	checker := &fakeChecker{outputs: map[string]string{
		"x": "x is a valid cloud optimized GeoTIFF",
		"y": "gibberish that parses as nothing",
		"z": "z is NOT a valid cloud optimized GeoTIFF",
	}}
	batch := NewBatch(store, checker, 4)

	recs, err := batch.Validate(context.Background(), []string{"x", "y", "z"}, false)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.True(t, recs["x"].IsReadable)
	assert.True(t, recs["x"].IsCompliant)
	assert.False(t, recs["y"].IsReadable)
	assert.True(t, recs["z"].IsReadable)
	assert.False(t, recs["z"].IsCompliant)
}

func TestValidateReusesCache(t *testing.T) {
	store := newTestStore(t)
	checker := &fakeChecker{outputs: map[string]string{
		"x": "x is a valid cloud optimized GeoTIFF",
	}}
	batch := NewBatch(store, checker, 4)
	ctx := context.Background()

	first, err := batch.Validate(ctx, []string{"x"}, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, checker.calls.Load())

	// Second pass performs zero live checks and returns the record unchanged.
	second, err := batch.Validate(ctx, []string{"x"}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, checker.calls.Load())
	assert.Equal(t, first["x"], second["x"])
}

func TestValidateForceRechecks(t *testing.T) {
	store := newTestStore(t)
	checker := &fakeChecker{outputs: map[string]string{
		"x": "x is a valid cloud optimized GeoTIFF",
	}}
	batch := NewBatch(store, checker, 4)
	ctx := context.Background()

	_, err := batch.Validate(ctx, []string{"x"}, false)
	require.NoError(t, err)

	// Downgrade the asset, then force a recheck.
	checker.mu.Lock()
	checker.outputs["x"] = "x is NOT a valid cloud optimized GeoTIFF"
	checker.mu.Unlock()

	recs, err := batch.Validate(ctx, []string{"x"}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, checker.calls.Load())
	assert.True(t, recs["x"].IsReadable)
	assert.False(t, recs["x"].IsCompliant)
}

func TestValidateMixedCachedAndNew(t *testing.T) {
	store := newTestStore(t)
	checker := &fakeChecker{outputs: map[string]string{
		"a": "a is a valid cloud optimized GeoTIFF",
		"b": "b is NOT a valid cloud optimized GeoTIFF",
	}}
	batch := NewBatch(store, checker, 4)
	ctx := context.Background()

	_, err := batch.Validate(ctx, []string{"a"}, false)
	require.NoError(t, err)

	recs, err := batch.Validate(ctx, []string{"a", "b"}, false)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.EqualValues(t, 2, checker.calls.Load())
	assert.True(t, recs["a"].IsCompliant)
	assert.False(t, recs["b"].IsCompliant)
}

func TestValidateCheckerFailureIsFatalNotAVerdict(t *testing.T) {
	store := newTestStore(t)
	checker := &fakeChecker{
		outputs: map[string]string{
			"a": "a is a valid cloud optimized GeoTIFF",
		},
		errs: map[string]error{
			"b": errors.New(`exec: "rio": executable file not found in $PATH`),
		},
	}
	batch := NewBatch(store, checker, 1)
	ctx := context.Background()

	_, err := batch.Validate(ctx, []string{"a", "b"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable file not found")

	// No verdict was cached for the asset the validator never examined,
	// so a later healthy run will check it rather than skip it.
	_, ok, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	// The verdict completed before the failure is still persisted.
	rec, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.IsCompliant)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := Record{
		Identifier:  "https://objects.example.com/rasters/a.tif",
		IsReadable:  true,
		IsCompliant: false,
		CheckedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, rec))

	got, ok, err := store.Get(ctx, rec.Identifier)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestSQLiteStoreLatestRecordWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := Record{Identifier: "a", IsReadable: false, CheckedAt: time.Unix(100, 0).UTC()}
	require.NoError(t, store.Put(ctx, rec))

	rec.IsReadable = true
	rec.IsCompliant = true
	rec.CheckedAt = time.Unix(200, 0).UTC()
	require.NoError(t, store.Put(ctx, rec))

	// Exactly one current record per identifier.
	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsReadable)
	assert.True(t, all[0].IsCompliant)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validation.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, Record{Identifier: "a", IsReadable: true, CheckedAt: time.Unix(100, 0).UTC()}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	_, ok, err := reopened.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}
