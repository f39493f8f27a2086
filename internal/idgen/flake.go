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

// Package idgen provides run and instance identifiers for logging and
// metrics attribution.
package idgen

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/sony/sonyflake"
)

// flakeEpoch anchors the sonyflake timestamp bits. Never move it
// forward, or IDs from old and new binaries stop sorting together.
var flakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultFlakeGenerator is the process-wide generator. Telemetry setup
// pulls one instance ID from it per run.
var DefaultFlakeGenerator *SonyFlakeGenerator

func init() {
	gen, err := NewFlakeGenerator()
	if err != nil {
		panic(err)
	}
	DefaultFlakeGenerator = gen
}

// SonyFlakeGenerator produces roughly time-ordered instance IDs.
type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

func NewFlakeGenerator() (*SonyFlakeGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: flakeEpoch})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("sonyflake returned no instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

// NextID returns a positive int64 that increases roughly in time
// order. ID generation never fails the caller: when sonyflake cannot
// produce one (clock skew), a random ID is returned instead, trading
// ordering for availability.
func (g *SonyFlakeGenerator) NextID() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}
