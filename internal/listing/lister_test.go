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

package listing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileListerReadsIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "https://objects.example.com/rasters/a.tif\n" +
		"\n" +
		"  https://objects.example.com/rasters/b.tif  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lister := &FileLister{Path: path}
	ids, err := lister.List(context.Background())
	require.NoError(t, err)

	assert.True(t, ids.Equal(mapset.NewSet(
		"https://objects.example.com/rasters/a.tif",
		"https://objects.example.com/rasters/b.tif",
	)))
}

func TestFileListerNormalizesURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("https:/objects.example.com/rasters/a.tif\n"), 0o644))

	lister := &FileLister{Path: path}
	ids, err := lister.List(context.Background())
	require.NoError(t, err)
	assert.True(t, ids.Contains("https://objects.example.com/rasters/a.tif"))
}

func TestFileListerMissingFileIsFatal(t *testing.T) {
	lister := &FileLister{Path: filepath.Join(t.TempDir(), "missing.txt")}
	_, err := lister.List(context.Background())
	assert.Error(t, err)
}
