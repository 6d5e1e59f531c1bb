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

/*
Package sysent is the system call boundary of the clock core: it copies arguments in
from the caller's memory, calls the kernel and copies results out. Every destination
is verified writable before anything is written to it.
*/
package sysent

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/facebook/softclock/clock"
	"github.com/facebook/softclock/hostendian"
	"github.com/facebook/softclock/itimer"
	"github.com/facebook/softclock/kernel"
	"github.com/facebook/softclock/servo"
)

// System call numbers of the i386 ABI
const (
	SysTime         = 13
	SysStime        = 25
	SysGettimeofday = 78
	SysSettimeofday = 79
	SysSetitimer    = 104
	SysGetitimer    = 105
	SysAdjtimex     = 124
)

// Process is the caller of a system call
type Process struct {
	PID  itimer.PID
	Cred kernel.Credentials
	Mem  UserMemory
}

// Table dispatches system calls to a kernel
type Table struct {
	k *kernel.Kernel
}

// New returns the system call table of k
func New(k *kernel.Kernel) *Table {
	return &Table{k: k}
}

// Errno maps an error to a negated errno, 0 for nil
func Errno(err error) int64 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, clock.ErrPermissionDenied):
		return -int64(unix.EPERM)
	case errors.Is(err, clock.ErrAccessDenied):
		return -int64(unix.EFAULT)
	case errors.Is(err, itimer.ErrNoProcess):
		return -int64(unix.ESRCH)
	}
	return -int64(unix.EINVAL)
}

func copyIn(p Process, addr uintptr, v any) error {
	buf := make([]byte, hostendian.Size(v))
	if err := p.Mem.CopyIn(addr, buf); err != nil {
		return err
	}
	if err := hostendian.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("%w: %w", clock.ErrAccessDenied, err)
	}
	return nil
}

func copyOut(p Process, addr uintptr, v any) error {
	buf, err := hostendian.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", clock.ErrAccessDenied, err)
	}
	return p.Mem.CopyOut(addr, buf)
}

func verifyOut(p Process, addr uintptr, v any) error {
	return p.Mem.VerifyWrite(addr, hostendian.Size(v))
}

func privileged(p Process) error {
	if p.Cred == nil || !p.Cred.IsPrivileged() {
		return clock.ErrPermissionDenied
	}
	return nil
}

// Time returns the wall clock seconds and stores them at tloc unless it is 0
func (t *Table) Time(p Process, tloc uintptr) (int64, error) {
	now := t.k.Time()
	if tloc != 0 {
		sec := int32(now)
		if err := verifyOut(p, tloc, &sec); err != nil {
			return 0, err
		}
		if err := copyOut(p, tloc, &sec); err != nil {
			return 0, err
		}
	}
	return now, nil
}

// Stime sets the wall clock to the seconds stored at tptr
func (t *Table) Stime(p Process, tptr uintptr) error {
	if err := privileged(p); err != nil {
		return err
	}
	var sec int32
	if err := copyIn(p, tptr, &sec); err != nil {
		return err
	}
	return t.k.Stime(p.Cred, int64(sec))
}

// Gettimeofday stores the wall clock at tv and the timezone at tz, either may be 0
func (t *Table) Gettimeofday(p Process, tv, tz uintptr) error {
	var (
		utv Timeval
		utz Timezone
	)
	if tv != 0 {
		if err := verifyOut(p, tv, &utv); err != nil {
			return err
		}
	}
	if tz != 0 {
		if err := verifyOut(p, tz, &utz); err != nil {
			return err
		}
	}
	now, zone := t.k.Gettimeofday()
	if tv != 0 {
		utv = FromClock(now)
		if err := copyOut(p, tv, &utv); err != nil {
			return err
		}
	}
	if tz != 0 {
		utz = Timezone{MinutesWest: zone.MinutesWest, DSTTime: zone.DSTTime}
		if err := copyOut(p, tz, &utz); err != nil {
			return err
		}
	}
	return nil
}

// Settimeofday sets the timezone from tz and the wall clock from tv, either may be 0
func (t *Table) Settimeofday(p Process, tv, tz uintptr) error {
	if err := privileged(p); err != nil {
		return err
	}
	var (
		ktv *clock.Timeval
		ktz *kernel.Timezone
	)
	if tz != 0 {
		var utz Timezone
		if err := copyIn(p, tz, &utz); err != nil {
			return err
		}
		z := utz.ToKernel()
		ktz = &z
	}
	if tv != 0 {
		var utv Timeval
		if err := copyIn(p, tv, &utv); err != nil {
			return err
		}
		v := utv.ToClock()
		ktv = &v
	}
	return t.k.Settimeofday(p.Cred, ktv, ktz)
}

// Adjtimex applies the request at txcp and overwrites it with the resulting state.
// The returned status is the call result on success.
func (t *Table) Adjtimex(p Process, txcp uintptr) (servo.Status, error) {
	var txc Timex
	if err := verifyOut(p, txcp, &txc); err != nil {
		return 0, err
	}
	if err := copyIn(p, txcp, &txc); err != nil {
		return 0, err
	}
	res, err := t.k.AdjustClock(p.Cred, txc.ToServo())
	if err != nil {
		return 0, err
	}
	out := FromServo(txc.Mode, res)
	if err := copyOut(p, txcp, &out); err != nil {
		return 0, err
	}
	return res.Status, nil
}

// Getitimer stores the timer selected by which at value
func (t *Table) Getitimer(p Process, which int, value uintptr) error {
	if value == 0 {
		return fmt.Errorf("%w: null itimerval", clock.ErrAccessDenied)
	}
	v, err := t.k.GetInterval(p.PID, which)
	if err != nil {
		return err
	}
	out := FromValue(v)
	if err := verifyOut(p, value, &out); err != nil {
		return err
	}
	return copyOut(p, value, &out)
}

// Setitimer arms the timer selected by which from value, disarming it when value is 0,
// and stores the previous setting at ovalue unless it is 0
func (t *Table) Setitimer(p Process, which int, value, ovalue uintptr) error {
	var in Itimerval
	if value != 0 {
		if err := copyIn(p, value, &in); err != nil {
			return err
		}
	}
	var out Itimerval
	if ovalue != 0 {
		if err := verifyOut(p, ovalue, &out); err != nil {
			return err
		}
	}
	prev, err := t.k.SetInterval(p.PID, which, in.ToValue())
	if err != nil {
		return err
	}
	if ovalue == 0 {
		return nil
	}
	out = FromValue(prev)
	return copyOut(p, ovalue, &out)
}

// Call dispatches system call nr and returns its result or a negated errno
func (t *Table) Call(p Process, nr int, args ...uintptr) int64 {
	arg := func(i int) uintptr {
		if i < len(args) {
			return args[i]
		}
		return 0
	}
	switch nr {
	case SysTime:
		now, err := t.Time(p, arg(0))
		if err != nil {
			return Errno(err)
		}
		return now
	case SysStime:
		return Errno(t.Stime(p, arg(0)))
	case SysGettimeofday:
		return Errno(t.Gettimeofday(p, arg(0), arg(1)))
	case SysSettimeofday:
		return Errno(t.Settimeofday(p, arg(0), arg(1)))
	case SysAdjtimex:
		status, err := t.Adjtimex(p, arg(0))
		if err != nil {
			return Errno(err)
		}
		return int64(status)
	case SysGetitimer:
		return Errno(t.Getitimer(p, int(int32(arg(0))), arg(1)))
	case SysSetitimer:
		return Errno(t.Setitimer(p, int(int32(arg(0))), arg(1), arg(2)))
	}
	return -int64(unix.ENOSYS)
}
