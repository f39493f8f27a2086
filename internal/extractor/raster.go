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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cardinalhq/stacrunner/internal/catalog"
)

// Metadata is the spatial metadata extracted from one raster asset's
// headers: footprint geometry, bounding box, and projection.
type Metadata struct {
	Geometry *catalog.Geometry
	BBox     []float64
	EPSG     int
}

// RasterReader extracts Metadata from a remote asset using byte-range
// reads, without downloading the whole file. Implementations wrap the
// external raster-metadata library; this package never parses raster
// bytes itself.
type RasterReader interface {
	ReadMetadata(ctx context.Context, url string) (*Metadata, error)
}

// CommandReader shells out to an external extractor (by default
// "rio stac") that emits a STAC item JSON for the asset, and lifts
// geometry, bbox, and projection out of that document.
type CommandReader struct {
	// Command is the extractor argv prefix; the asset URL is appended
	// as the final argument.
	Command []string
}

var _ RasterReader = (*CommandReader)(nil)

// NewCommandReader returns a reader for the given extractor command.
// An empty command selects the default "rio stac".
func NewCommandReader(command []string) *CommandReader {
	if len(command) == 0 {
		command = []string{"rio", "stac"}
	}
	return &CommandReader{Command: command}
}

// ReadMetadata runs the extractor against one asset URL. Spaces are
// percent-encoded for GDAL's HTTP layer.
func (r *CommandReader) ReadMetadata(ctx context.Context, url string) (*Metadata, error) {
	encoded := strings.ReplaceAll(url, " ", "%20")
	args := append(append([]string{}, r.Command[1:]...), encoded)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("extract metadata from %s: %s", url, msg)
	}

	var doc struct {
		Geometry   *catalog.Geometry `json:"geometry"`
		BBox       []float64         `json:"bbox"`
		Properties struct {
			EPSG int `json:"proj:epsg"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("parse extractor output for %s: %w", url, err)
	}
	if doc.Geometry == nil {
		return nil, fmt.Errorf("extractor produced no geometry for %s", url)
	}

	return &Metadata{
		Geometry: doc.Geometry,
		BBox:     doc.BBox,
		EPSG:     doc.Properties.EPSG,
	}, nil
}
