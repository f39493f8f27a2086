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

// Package validcache maintains the durable per-asset validation cache.
// It owns the validation records exclusively: one current record per
// identifier, absence meaning "not yet validated". A live check
// classifies an asset into exactly one of three outcomes: compliant
// with the cloud-optimized profile, readable but not optimized, or
// unreadable.
package validcache

import (
	"context"
	"strings"
	"time"
)

// Record is the cached verdict for one asset. Re-validation replaces
// the current record; history is not retained.
type Record struct {
	Identifier  string
	IsReadable  bool
	IsCompliant bool
	CheckedAt   time.Time
}

// Store is the durable key-value store of current validation records,
// keyed by asset identifier.
type Store interface {
	Get(ctx context.Context, identifier string) (Record, bool, error)
	Put(ctx context.Context, rec Record) error
	All(ctx context.Context) ([]Record, error)
	Close() error
}

// Checker performs a live format check against one asset and returns
// the validator's literal textual verdict. Implementations wrap the
// external format validator; they never interpret the output.
type Checker interface {
	Check(ctx context.Context, identifier string) (string, error)
}

// Validator verdict fragments. Classification is determined from these
// literal categories only; anything else means the asset is unreadable.
const (
	verdictValid    = "is a valid cloud optimized"
	verdictNotValid = "is NOT a valid cloud optimized"
)

// Classify maps a validator's textual output onto the three-way
// readable/compliant classification.
func Classify(output string) (readable, compliant bool) {
	switch {
	case strings.Contains(output, verdictNotValid):
		return true, false
	case strings.Contains(output, verdictValid):
		return true, true
	default:
		return false, false
	}
}
