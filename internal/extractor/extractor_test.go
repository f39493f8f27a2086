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

package extractor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/stacrunner/internal/catalog"
	"github.com/cardinalhq/stacrunner/internal/validcache"
)

const (
	srcPrefix      = "https://objects.example.com/rasters"
	collectionID   = "raster-catalog"
	collectionHref = "https://catalog.example.com/collection.json"
)

// fakeReader returns canned metadata, failing (or panicking) for
// configured URLs.
type fakeReader struct {
	failing   map[string]error
	panicking map[string]bool
}

func (f *fakeReader) ReadMetadata(_ context.Context, url string) (*Metadata, error) {
	if f.panicking[url] {
		panic("reader blew up")
	}
	if err, ok := f.failing[url]; ok {
		return nil, err
	}
	return &Metadata{
		Geometry: &catalog.Geometry{
			Type:        "Polygon",
			Coordinates: [][][]float64{{{-123, 48}, {-122, 48}, {-122, 49}, {-123, 49}, {-123, 48}}},
		},
		BBox: []float64{-123, 48, -122, 49},
		EPSG: 3157,
	}, nil
}

func readableRecord(id string, compliant bool) validcache.Record {
	return validcache.Record{Identifier: id, IsReadable: true, IsCompliant: compliant, CheckedAt: time.Now().UTC()}
}

func newTestBuilder(reader RasterReader) *Builder {
	return NewBuilder(reader, BuilderConfig{
		CollectionID:   collectionID,
		CollectionHref: collectionHref,
		SourcePrefix:   srcPrefix,
		Workers:        4,
	})
}

func TestBuildItemsIsolatesFailures(t *testing.T) {
	const n = 10
	bad := srcPrefix + "/bad/file_3.tif"

	ids := make([]string, 0, n)
	validations := map[string]validcache.Record{}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s/bad/file_%d.tif", srcPrefix, i)
		ids = append(ids, id)
		validations[id] = readableRecord(id, true)
	}

	builder := newTestBuilder(&fakeReader{failing: map[string]error{bad: errors.New("connection reset")}})
	results := builder.BuildItems(context.Background(), ids, validations)
	require.Len(t, results, n)

	summary := Summarize(results)
	assert.Equal(t, n-1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Error(t, summary.Failures)
	assert.Contains(t, summary.Failures.Error(), "connection reset")
}

func TestBuildItemsRecoversPanics(t *testing.T) {
	id := srcPrefix + "/a/b.tif"
	builder := newTestBuilder(&fakeReader{panicking: map[string]bool{id: true}})

	results := builder.BuildItems(context.Background(), []string{id},
		map[string]validcache.Record{id: readableRecord(id, true)})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Nil(t, results[0].Item)
}

func TestBuildItemsSkipsUnreadable(t *testing.T) {
	readable := srcPrefix + "/092b/2019/bc_092b_utm10_2019.tif"
	unreadable := srcPrefix + "/092b/2019/broken.tif"
	unknown := srcPrefix + "/092b/2019/never_validated.tif"

	validations := map[string]validcache.Record{
		readable:   readableRecord(readable, true),
		unreadable: {Identifier: unreadable, IsReadable: false},
	}

	builder := newTestBuilder(&fakeReader{})
	results := builder.BuildItems(context.Background(), []string{readable, unreadable, unknown}, validations)
	require.Len(t, results, 3)

	assert.NotNil(t, results[0].Item)
	assert.True(t, results[1].Skipped)
	assert.True(t, results[2].Skipped)

	summary := Summarize(results)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Skipped)
}

func TestBuildItemsPreservesSubmissionOrder(t *testing.T) {
	var ids []string
	validations := map[string]validcache.Record{}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("%s/tiles/tile_%02d.tif", srcPrefix, i)
		ids = append(ids, id)
		validations[id] = readableRecord(id, true)
	}

	builder := newTestBuilder(&fakeReader{})
	results := builder.BuildItems(context.Background(), ids, validations)
	require.Len(t, results, len(ids))
	for i, r := range results {
		assert.Equal(t, ids[i], r.Identifier)
	}
}

func TestBuildItemMediaTypeFollowsValidation(t *testing.T) {
	cog := srcPrefix + "/a/cog.tif"
	plain := srcPrefix + "/a/plain.tif"
	validations := map[string]validcache.Record{
		cog:   readableRecord(cog, true),
		plain: readableRecord(plain, false),
	}

	builder := newTestBuilder(&fakeReader{})
	results := builder.BuildItems(context.Background(), []string{cog, plain}, validations)

	require.NotNil(t, results[0].Item)
	assert.Equal(t, catalog.MediaTypeCOG, results[0].Item.Assets["image"].Type)
	require.NotNil(t, results[1].Item)
	assert.Equal(t, catalog.MediaTypeGeoTIFF, results[1].Item.Assets["image"].Type)
}

func TestBuildItemDatetimeFromPath(t *testing.T) {
	dated := srcPrefix + "/092b/bc_092b_utm10_20230415.tif"
	undated := srcPrefix + "/albers10k2m/_completed_dem/dem_165_071.tif"
	validations := map[string]validcache.Record{
		dated:   readableRecord(dated, true),
		undated: readableRecord(undated, true),
	}

	builder := newTestBuilder(&fakeReader{})
	results := builder.BuildItems(context.Background(), []string{dated, undated}, validations)

	require.NotNil(t, results[0].Item)
	assert.Equal(t, time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC), results[0].Item.Properties.Datetime)
	assert.False(t, results[0].Item.Properties.DatetimeUnknown)

	require.NotNil(t, results[1].Item)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), results[1].Item.Properties.Datetime)
	assert.True(t, results[1].Item.Properties.DatetimeUnknown)
}

func TestBuildItemIdentityIsStable(t *testing.T) {
	id := srcPrefix + "/092b/2019/bc_092b_utm10_2019.tif"
	validations := map[string]validcache.Record{id: readableRecord(id, true)}
	builder := newTestBuilder(&fakeReader{})

	first := builder.BuildItems(context.Background(), []string{id}, validations)
	second := builder.BuildItems(context.Background(), []string{id}, validations)

	require.NotNil(t, first[0].Item)
	require.NotNil(t, second[0].Item)
	assert.Equal(t, "092b-2019-bc_092b_utm10_2019", first[0].Item.ID)
	assert.Equal(t, first[0].Item.ID, second[0].Item.ID)
}

func TestBuildItemLinksAndCollection(t *testing.T) {
	id := srcPrefix + "/a/b.tif"
	validations := map[string]validcache.Record{id: readableRecord(id, true)}
	builder := newTestBuilder(&fakeReader{})

	results := builder.BuildItems(context.Background(), []string{id}, validations)
	item := results[0].Item
	require.NotNil(t, item)

	assert.Equal(t, collectionID, item.Collection)
	assert.Equal(t, 3157, item.Properties.ProjEPSG)
	var rels []string
	for _, l := range item.Links {
		rels = append(rels, l.Rel)
		assert.Equal(t, collectionHref, l.Href)
	}
	assert.ElementsMatch(t, []string{"collection", "parent"}, rels)
}
