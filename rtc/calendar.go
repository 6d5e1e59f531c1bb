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

package rtc

import (
	"fmt"
	"time"
)

// Calendar is the decoded content of the MC146818 time registers
type Calendar struct {
	Sec  int
	Min  int
	Hour int
	Day  int
	// Mon is zero-based
	Mon int
	// Year is the two digit year as stored by the chip
	Year int
}

// FullYear expands the two digit year: below 70 is 20xx, otherwise 19xx
func (c Calendar) FullYear() int {
	if c.Year < 70 {
		return 2000 + c.Year
	}
	return 1900 + c.Year
}

// Unix returns seconds since the epoch, treating the calendar as UTC
func (c Calendar) Unix() (int64, error) {
	if c.Sec < 0 || c.Sec > 59 || c.Min < 0 || c.Min > 59 || c.Hour < 0 || c.Hour > 23 ||
		c.Mon < 0 || c.Mon > 11 || c.Year < 0 || c.Year > 99 || c.Day < 1 {
		return 0, fmt.Errorf("implausible calendar %s", c)
	}
	t := time.Date(c.FullYear(), time.Month(c.Mon+1), c.Day, c.Hour, c.Min, c.Sec, 0, time.UTC)
	// time.Date normalizes, a day past the end of the month comes back changed
	if t.Day() != c.Day {
		return 0, fmt.Errorf("implausible calendar %s", c)
	}
	return t.Unix(), nil
}

func (c Calendar) String() string {
	return fmt.Sprintf("%02d-%02d-%02d %02d:%02d:%02d", c.Year, c.Mon+1, c.Day, c.Hour, c.Min, c.Sec)
}
