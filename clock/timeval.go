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

package clock

import (
	"fmt"
	"time"
)

// USecPerSec is the number of microseconds in a second
const USecPerSec = 1000000

// Timeval is a point in time or a duration as seconds plus microseconds.
// A normalized Timeval always has Usec in [0, USecPerSec).
type Timeval struct {
	Sec  int64
	Usec int64
}

// FromTime converts time.Time to Timeval, truncating to microseconds
func FromTime(t time.Time) Timeval {
	return Timeval{Sec: t.Unix(), Usec: int64(t.Nanosecond() / 1000)}
}

// Time returns Timeval as time.Time
func (tv Timeval) Time() time.Time {
	return time.Unix(tv.Sec, tv.Usec*1000)
}

// Normalize carries microseconds overflow or borrow into seconds
func (tv Timeval) Normalize() Timeval {
	if tv.Usec >= USecPerSec {
		tv.Sec += tv.Usec / USecPerSec
		tv.Usec %= USecPerSec
	} else if tv.Usec < 0 {
		n := (-tv.Usec-1)/USecPerSec + 1
		tv.Sec -= n
		tv.Usec += n * USecPerSec
	}
	return tv
}

// Add returns tv shifted by usec microseconds, normalized
func (tv Timeval) Add(usec int64) Timeval {
	tv.Usec += usec
	return tv.Normalize()
}

// Valid tells if microseconds are within range
func (tv Timeval) Valid() bool {
	return tv.Usec >= 0 && tv.Usec < USecPerSec
}

// IsZero tells if both fields are zero
func (tv Timeval) IsZero() bool {
	return tv.Sec == 0 && tv.Usec == 0
}

// Sub returns tv-other in microseconds
func (tv Timeval) Sub(other Timeval) int64 {
	return (tv.Sec-other.Sec)*USecPerSec + tv.Usec - other.Usec
}

func (tv Timeval) String() string {
	return fmt.Sprintf("%d.%06d", tv.Sec, tv.Usec)
}
