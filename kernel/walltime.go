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

package kernel

import (
	"fmt"

	"github.com/facebook/softclock/clock"
)

// Timezone is stored for callers, the kernel itself keeps UTC
type Timezone struct {
	MinutesWest int32
	DSTTime     int32
}

func privileged(cred Credentials) error {
	if cred == nil || !cred.IsPrivileged() {
		return clock.ErrPermissionDenied
	}
	return nil
}

// GetTime returns the wall clock with sub-tick resolution
func (k *Kernel) GetTime() clock.Timeval {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.now()
}

func (k *Kernel) now() clock.Timeval {
	return k.xtime.Add(k.latch.Offset(k.pll.Tick()))
}

// Time returns the wall clock seconds as of the last tick
func (k *Kernel) Time() int64 {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.xtime.Sec
}

// Timezone returns the stored timezone
func (k *Kernel) Timezone() Timezone {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.tz
}

// Gettimeofday returns the wall clock and the stored timezone
func (k *Kernel) Gettimeofday() (clock.Timeval, Timezone) {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.now(), k.tz
}

// SetTime steps the wall clock so that GetTime returns tv, and marks it unsynchronized
func (k *Kernel) SetTime(cred Credentials, tv clock.Timeval) error {
	if err := privileged(cred); err != nil {
		return err
	}
	if !tv.Valid() {
		return fmt.Errorf("%w: microseconds %d out of range", clock.ErrInvalidArgument, tv.Usec)
	}
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	k.setTime(tv)
	return nil
}

// setTime removes the sub-tick offset GetTime will add back
func (k *Kernel) setTime(tv clock.Timeval) {
	k.xtime = tv.Add(-k.latch.Offset(k.pll.Tick()))
	k.pll.Unsynchronize()
	k.counters.Steps++
}

// Stime sets the wall clock to whole seconds, as of the last tick
func (k *Kernel) Stime(cred Credentials, sec int64) error {
	if err := privileged(cred); err != nil {
		return err
	}
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	k.xtime = clock.Timeval{Sec: sec}
	k.pll.Unsynchronize()
	k.counters.Steps++
	return nil
}

// Settimeofday stores tz and steps the clock to tv, either may be nil.
// The first timezone ever set without a time shifts the clock by the timezone offset,
// for an RTC kept in local time.
func (k *Kernel) Settimeofday(cred Credentials, tv *clock.Timeval, tz *Timezone) error {
	if err := privileged(cred); err != nil {
		return err
	}
	if tv != nil && !tv.Valid() {
		return fmt.Errorf("%w: microseconds %d out of range", clock.ErrInvalidArgument, tv.Usec)
	}
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	k.settimeofday(tv, tz)
	return nil
}

func (k *Kernel) settimeofday(tv *clock.Timeval, tz *Timezone) {
	if tz != nil {
		k.tz = *tz
		if !k.tzSet {
			k.tzSet = true
			if tv == nil {
				k.xtime.Sec += int64(tz.MinutesWest) * 60
			}
		}
	}
	if tv != nil {
		k.setTime(*tv)
	}
}

// QueryAndSetTimezone returns the stored timezone and replaces it with tz when not nil
func (k *Kernel) QueryAndSetTimezone(cred Credentials, tz *Timezone) (Timezone, error) {
	if tz != nil {
		if err := privileged(cred); err != nil {
			return Timezone{}, err
		}
	}
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	prev := k.tz
	if tz != nil {
		k.settimeofday(nil, tz)
	}
	return prev, nil
}
