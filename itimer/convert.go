/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package itimer

import (
	"fmt"
	"math"

	"github.com/facebook/softclock/clock"
)

// Value is an interval timer as seen by a process
type Value struct {
	// Value is the time left until expiry, zero when disarmed
	Value clock.Timeval
	// Interval is the reload applied on expiry, zero for one shot
	Interval clock.Timeval
}

// Validate checks both fields are non-negative normalized times
func (v Value) Validate() error {
	for _, tv := range []clock.Timeval{v.Value, v.Interval} {
		if tv.Sec < 0 || !tv.Valid() {
			return fmt.Errorf("%w: timer value %s", clock.ErrInvalidArgument, tv)
		}
	}
	return nil
}

// Converter translates between microsecond times and ticks at a fixed HZ
type Converter struct {
	hz          uint64
	usecPerTick uint64
}

// NewConverter returns a Converter for hz ticks per second
func NewConverter(hz int) Converter {
	return Converter{hz: uint64(hz), usecPerTick: uint64(clock.USecPerSec / hz)}
}

// ToTicks rounds tv up to whole ticks. tv must be non-negative.
func (c Converter) ToTicks(tv clock.Timeval) uint64 {
	return uint64(tv.Sec)*c.hz + (uint64(tv.Usec)+c.usecPerTick-1)/c.usecPerTick
}

// Check rejects a value whose deadline or reload would overflow the tick counter when armed at tick now
func (c Converter) Check(v Value, now uint64) error {
	var limit uint64
	if half := uint64(math.MaxUint64 / 2); now < half {
		limit = (half - now) / c.hz
	}
	if limit > 0 {
		limit--
	}
	for _, tv := range []clock.Timeval{v.Value, v.Interval} {
		if uint64(tv.Sec) > limit {
			return fmt.Errorf("%w: timer value %s out of range", clock.ErrInvalidArgument, tv)
		}
	}
	return nil
}

// FromTicks converts ticks back to seconds and microseconds
func (c Converter) FromTicks(ticks uint64) clock.Timeval {
	return clock.Timeval{
		Sec:  int64(ticks / c.hz),
		Usec: int64((ticks % c.hz) * c.usecPerTick),
	}
}
