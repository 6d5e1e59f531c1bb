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

	"golang.org/x/sys/unix"

	"github.com/facebook/softclock/clock"
)

// Kind selects one of the three interval timers of a process
type Kind int

// Timer kinds
const (
	// Real counts down in wall clock ticks
	Real Kind = 0
	// Virtual counts down while the process runs in user mode
	Virtual Kind = 1
	// Prof counts down while the process runs in user or system mode
	Prof Kind = 2
)

// ParseKind validates the numeric timer selector
func ParseKind(which int) (Kind, error) {
	k := Kind(which)
	if !k.Valid() {
		return 0, fmt.Errorf("%w: timer kind %d", clock.ErrInvalidArgument, which)
	}
	return k, nil
}

// Valid tells if k is a defined timer kind
func (k Kind) Valid() bool {
	return k >= Real && k <= Prof
}

// Signal returns the signal sent on expiry
func (k Kind) Signal() unix.Signal {
	switch k {
	case Virtual:
		return unix.SIGVTALRM
	case Prof:
		return unix.SIGPROF
	}
	return unix.SIGALRM
}

func (k Kind) String() string {
	switch k {
	case Real:
		return "REAL"
	case Virtual:
		return "VIRTUAL"
	case Prof:
		return "PROF"
	}
	return "UNSUPPORTED"
}
