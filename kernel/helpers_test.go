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
	"golang.org/x/sys/unix"

	"github.com/facebook/softclock/clock"
	"github.com/facebook/softclock/itimer"
)

const (
	sigalrm   = unix.SIGALRM
	sigvtalrm = unix.SIGVTALRM
	sigprof   = unix.SIGPROF
)

func itimerPID(pid int32) itimer.PID {
	return itimer.PID(pid)
}

func itimerValue(sec, usec, isec, iusec int64) itimer.Value {
	return itimer.Value{
		Value:    clock.Timeval{Sec: sec, Usec: usec},
		Interval: clock.Timeval{Sec: isec, Usec: iusec},
	}
}
