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

package cloudstorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileClientLifecycle(t *testing.T) {
	base := t.TempDir()
	client := NewFileClient(base)

	src := filepath.Join(base, "item.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"id":"a-1"}`), 0o644))

	require.NoError(t, client.UploadObject(context.Background(), "catalog", "a-1.json", src))

	tmp := t.TempDir()
	dst, size, notFound, err := client.DownloadObject(context.Background(), tmp, "catalog", "a-1.json")
	require.NoError(t, err)
	require.False(t, notFound)
	require.Equal(t, int64(12), size)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, `{"id":"a-1"}`, string(data))

	require.NoError(t, client.DeleteObject(context.Background(), "catalog", "a-1.json"))
	_, _, notFound, err = client.DownloadObject(context.Background(), tmp, "catalog", "a-1.json")
	require.NoError(t, err)
	require.True(t, notFound)
}

func TestFileClientMissingObject(t *testing.T) {
	client := NewFileClient(t.TempDir())
	_, _, notFound, err := client.DownloadObject(context.Background(), t.TempDir(), "catalog", "nope.json")
	require.NoError(t, err)
	require.True(t, notFound)
}
