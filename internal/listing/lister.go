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

// Package listing retrieves the complete current set of raster asset
// identifiers from the external source. Retrieval is all-or-nothing: a
// partial listing is never returned, because the change detector would
// otherwise persist a snapshot that does not reflect a full listing.
package listing

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/stacrunner/internal/assetid"
)

// Lister returns the current complete identifier set or an error.
type Lister interface {
	List(ctx context.Context) (mapset.Set[string], error)
}

// FileLister reads identifiers from a newline-delimited file. Used for
// local runs and for replaying a captured listing.
type FileLister struct {
	Path string
}

var _ Lister = (*FileLister)(nil)

// List reads the whole file; identifiers are normalized on the way in.
func (l *FileLister) List(ctx context.Context) (mapset.Set[string], error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open listing file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ids := mapset.NewSet[string]()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			ids.Add(assetid.Normalize(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read listing file: %w", err)
	}
	return ids, nil
}
