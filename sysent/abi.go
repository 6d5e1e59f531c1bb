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

package sysent

import (
	"github.com/facebook/softclock/clock"
	"github.com/facebook/softclock/itimer"
	"github.com/facebook/softclock/kernel"
	"github.com/facebook/softclock/servo"
)

// Structures as a 32-bit process lays them out, longs are 32 bits wide

// Timeval is struct timeval
type Timeval struct {
	Sec  int32
	Usec int32
}

// Timezone is struct timezone
type Timezone struct {
	MinutesWest int32
	DSTTime     int32
}

// Itimerval is struct itimerval, interval first
type Itimerval struct {
	Interval Timeval
	Value    Timeval
}

// Timex is struct timex
type Timex struct {
	Mode      uint32
	Offset    int32
	Frequency int32
	MaxError  int32
	EstError  int32
	Status    int32
	Constant  int32
	Precision int32
	Tolerance int32
	Time      Timeval
	Tick      int32
}

// ToClock converts to the kernel representation
func (tv Timeval) ToClock() clock.Timeval {
	return clock.Timeval{Sec: int64(tv.Sec), Usec: int64(tv.Usec)}
}

// FromClock converts from the kernel representation, seconds are truncated to 32 bits
func FromClock(tv clock.Timeval) Timeval {
	return Timeval{Sec: int32(tv.Sec), Usec: int32(tv.Usec)}
}

// ToKernel converts to the kernel representation
func (tz Timezone) ToKernel() kernel.Timezone {
	return kernel.Timezone{MinutesWest: tz.MinutesWest, DSTTime: tz.DSTTime}
}

// ToValue converts to the kernel representation
func (it Itimerval) ToValue() itimer.Value {
	return itimer.Value{Value: it.Value.ToClock(), Interval: it.Interval.ToClock()}
}

// FromValue converts from the kernel representation
func FromValue(v itimer.Value) Itimerval {
	return Itimerval{Value: FromClock(v.Value), Interval: FromClock(v.Interval)}
}

// ToServo converts a request to the kernel representation
func (t Timex) ToServo() servo.Timex {
	return servo.Timex{
		Modes:     t.Mode,
		Offset:    int64(t.Offset),
		Freq:      servo.ScaledPPM(t.Frequency),
		MaxError:  int64(t.MaxError),
		EstError:  int64(t.EstError),
		Status:    servo.Status(t.Status),
		Constant:  int64(t.Constant),
		Precision: int64(t.Precision),
		Tolerance: int64(t.Tolerance),
		Time:      t.Time.ToClock(),
		Tick:      int64(t.Tick),
	}
}

// FromServo converts a snapshot from the kernel representation, the mode is kept
func FromServo(mode uint32, s servo.Timex) Timex {
	return Timex{
		Mode:      mode,
		Offset:    int32(s.Offset),
		Frequency: int32(s.Freq),
		MaxError:  int32(s.MaxError),
		EstError:  int32(s.EstError),
		Status:    int32(s.Status),
		Constant:  int32(s.Constant),
		Precision: int32(s.Precision),
		Tolerance: int32(s.Tolerance),
		Time:      FromClock(s.Time),
		Tick:      int32(s.Tick),
	}
}
