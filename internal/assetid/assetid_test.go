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

package assetid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "https://objects.example.com/rasters"

func TestNormalize(t *testing.T) {
	assert.Equal(t, "https://a/b.tif", Normalize("https:/a/b.tif"))
	assert.Equal(t, "https://a/b.tif", Normalize("https://a/b.tif"))
	assert.Equal(t, "http://a/b.tif", Normalize("http://a/b.tif"))
}

func TestItemIDRoundTrip(t *testing.T) {
	url := prefix + "/albers10k2m/_completed_dem/dem_165_071.tif"
	id := ItemID(prefix, url)
	assert.Equal(t, "albers10k2m-_completed_dem-dem_165_071", id)
	assert.Equal(t, url, URLForItemID(prefix, id))
}

func TestItemIDIsDeterministic(t *testing.T) {
	url := prefix + "/092b/2019/bc_092b_xl1m_utm10_2019.tif"
	assert.Equal(t, ItemID(prefix, url), ItemID(prefix, url))
}

func TestDateFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/092b/bc_092b_utm10_20230415.tif", "20230415"},
		{"/092b/bc_092b_utm9_2019.tif", "2019"},
		{"/gdwuts/2021/bc_dem.tif", "2021"},
		// tile numbers after _utm markers are not dates
		{"/092b/bc_092b_utm10_19990101.tif", ""},
		{"/albers10k2m/_completed_dem/dem_165_071.tif", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DateFromPath(c.path), "path %s", c.path)
	}
}

func TestParseDate(t *testing.T) {
	ts, ok := ParseDate("20230415")
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC), ts)

	ts, ok = ParseDate("2019")
	require.True(t, ok)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), ts)

	_, ok = ParseDate("202304") // 6 digits never parses
	assert.False(t, ok)
	_, ok = ParseDate("")
	assert.False(t, ok)
}

func TestTimeFromPath(t *testing.T) {
	ts, ok := TimeFromPath("/092b/bc_092b_utm10_20230415.tif")
	require.True(t, ok)
	assert.Equal(t, 2023, ts.Year())

	_, ok = TimeFromPath("/albers10k2m/_completed_dem/dem_165_071.tif")
	assert.False(t, ok)
}
