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

// Package catalog owns the persisted catalog document: a STAC-style
// collection plus one JSON file per cataloged raster item. The merger is
// the only writer of the collection; extraction hands it transient item
// records and never touches the document itself.
package catalog

import (
	"strings"
	"time"
)

const (
	stacVersion = "1.0.0"

	// MediaTypeCOG marks assets that validate as cloud-optimized.
	MediaTypeCOG = "image/tiff; application=geotiff; profile=cloud-optimized"
	// MediaTypeGeoTIFF marks assets that are readable but not optimized.
	MediaTypeGeoTIFF = "image/tiff; application=geotiff"

	// RelItem is the link relation used for per-item links on the collection.
	RelItem = "item"

	itemMediaType = "application/json"
)

// Geometry is a GeoJSON geometry. Only polygons are produced by the
// raster readers we consume, but the type field is carried verbatim.
type Geometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// Link is a STAC link object.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Asset is a STAC asset object pointing back at the source raster.
type Asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// ItemProperties holds per-item metadata. DatetimeUnknown flags items
// whose acquisition date could not be derived from the asset path and
// carry the placeholder timestamp instead.
type ItemProperties struct {
	Datetime        time.Time `json:"datetime"`
	DatetimeUnknown bool      `json:"datetime_unknown,omitempty"`
	ProjEPSG        int       `json:"proj:epsg,omitempty"`
}

// Item is a catalog item record: one GeoJSON feature per raster asset.
type Item struct {
	Type        string           `json:"type"`
	StacVersion string           `json:"stac_version"`
	ID          string           `json:"id"`
	Collection  string           `json:"collection,omitempty"`
	Geometry    *Geometry        `json:"geometry"`
	BBox        []float64        `json:"bbox,omitempty"`
	Properties  ItemProperties   `json:"properties"`
	Assets      map[string]Asset `json:"assets"`
	Links       []Link           `json:"links"`
}

// NewItem returns an item shell with the STAC boilerplate filled in.
func NewItem(id, collectionID string) *Item {
	return &Item{
		Type:        "Feature",
		StacVersion: stacVersion,
		ID:          id,
		Collection:  collectionID,
		Assets:      map[string]Asset{},
		Links:       []Link{},
	}
}

// SpatialExtent is the collection-level spatial extent.
type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

// TemporalExtent is the collection-level temporal extent. Interval
// endpoints are RFC3339 strings or null (open-ended).
type TemporalExtent struct {
	Interval [][]*string `json:"interval"`
}

// Extent aggregates the spatial and temporal extents.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// Collection is the persisted catalog document. Its item links are a
// set: no two links ever reference the same item ID.
type Collection struct {
	Type        string `json:"type"`
	StacVersion string `json:"stac_version"`
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	License     string `json:"license"`
	Extent      Extent `json:"extent"`
	Links       []Link `json:"links"`
}

// NewCollection returns a collection shell with the STAC boilerplate
// filled in.
func NewCollection(id, title, description, license string, extent Extent) *Collection {
	return &Collection{
		Type:        "Collection",
		StacVersion: stacVersion,
		ID:          id,
		Title:       title,
		Description: description,
		License:     license,
		Extent:      extent,
		Links:       []Link{},
	}
}

// ItemIDs returns the set of item IDs currently linked from the
// collection, keyed for duplicate suppression during merge.
func (c *Collection) ItemIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, l := range c.Links {
		if l.Rel != RelItem {
			continue
		}
		ids[itemIDFromHref(l.Href)] = struct{}{}
	}
	return ids
}

// itemIDFromHref recovers the item ID from an item link href. Item
// links are always written as <base>/<id>.json, so the basename minus
// the extension is the ID.
func itemIDFromHref(href string) string {
	base := href
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".json")
}

// TemporalInterval builds a single-interval temporal extent from two
// timestamps. A zero timestamp becomes a null endpoint (open-ended).
func TemporalInterval(start, end time.Time) TemporalExtent {
	var s, e *string
	if !start.IsZero() {
		v := start.UTC().Format(time.RFC3339)
		s = &v
	}
	if !end.IsZero() {
		v := end.UTC().Format(time.RFC3339)
		e = &v
	}
	return TemporalExtent{Interval: [][]*string{{s, e}}}
}
