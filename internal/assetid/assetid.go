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

// Package assetid derives stable catalog item identity and acquisition
// timestamps from remote raster asset URLs. Item IDs must be a pure,
// reversible function of the asset URL so repeated runs over the same
// asset always merge to the same catalog entry.
package assetid

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const rasterSuffix = ".tif"

// Year bounds for dates encoded in asset paths. Anything outside this
// window is treated as not-a-date (tile numbers often look like years).
const (
	minPathYear = 2000
	maxPathYear = 2050
)

var (
	// _utm10_20230415.tif or _utm9_2019.tif
	utmDateRe = regexp.MustCompile(`_utm\d{1,2}_([0-9]{4,8})`)
	// /2023/ directory component
	yearDirRe = regexp.MustCompile(`/(2[0-9]{3})/`)
)

// Normalize repairs URLs that lost a slash after the scheme, a known
// defect in some upstream listings.
func Normalize(url string) string {
	if strings.HasPrefix(url, "https:/") && !strings.HasPrefix(url, "https://") {
		return strings.Replace(url, "https:/", "https://", 1)
	}
	return url
}

// ItemID converts an asset URL into a catalog item ID by stripping the
// source prefix, flattening path separators, and dropping the raster
// suffix. The transform is reversible via URLForItemID.
func ItemID(sourcePrefix, url string) string {
	id := strings.TrimPrefix(url, sourcePrefix)
	id = strings.TrimPrefix(id, "/")
	id = strings.ReplaceAll(id, "/", "-")
	return strings.TrimSuffix(id, rasterSuffix)
}

// URLForItemID reverses ItemID, reconstructing the asset URL from a
// catalog item ID.
func URLForItemID(sourcePrefix, id string) string {
	return strings.TrimSuffix(sourcePrefix, "/") + "/" + strings.ReplaceAll(id, "-", "/") + rasterSuffix
}

// DateFromPath extracts a date string (YYYYMMDD or YYYY) encoded in an
// asset path. It first looks for a date after a _utmNN_ marker, then
// falls back to a /YYYY/ directory component. Returns "" when the path
// encodes no plausible date.
func DateFromPath(s string) string {
	if m := utmDateRe.FindStringSubmatch(s); m != nil {
		val := m[1]
		if year, err := strconv.Atoi(val[:4]); err == nil && year >= minPathYear && year <= maxPathYear {
			return val
		}
	}
	if m := yearDirRe.FindStringSubmatch(s); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil && year >= minPathYear && year <= maxPathYear {
			return m[1]
		}
	}
	return ""
}

// ParseDate turns a DateFromPath result into a UTC timestamp. An
// 8-digit value is midnight UTC on that day, a 4-digit value is January
// 1 of that year. Other lengths do not parse.
func ParseDate(s string) (time.Time, bool) {
	switch len(s) {
	case 8:
		t, err := time.Parse("20060102", s)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case 4:
		t, err := time.Parse("2006", s)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}

// TimeFromPath combines DateFromPath and ParseDate. ok is false when no
// usable date is encoded in the path; callers substitute a placeholder
// and flag the item.
func TimeFromPath(s string) (time.Time, bool) {
	d := DateFromPath(s)
	if d == "" {
		return time.Time{}, false
	}
	return ParseDate(d)
}
