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
	"github.com/facebook/softclock/itimer"
)

// ProcessCreated gives pid a set of disarmed interval timers
func (k *Kernel) ProcessCreated(pid itimer.PID) {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	k.timers.Attach(pid)
}

// ProcessExited drops the interval timers of pid
func (k *Kernel) ProcessExited(pid itimer.PID) {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	k.timers.Detach(pid)
}

// GetInterval returns the remaining time and reload of one timer of pid
func (k *Kernel) GetInterval(pid itimer.PID, which int) (itimer.Value, error) {
	kind, err := itimer.ParseKind(which)
	if err != nil {
		return itimer.Value{}, err
	}
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.timers.Get(pid, kind, k.jiffies)
}

// SetInterval arms or disarms one timer of pid and returns its previous value
func (k *Kernel) SetInterval(pid itimer.PID, which int, v itimer.Value) (itimer.Value, error) {
	kind, err := itimer.ParseKind(which)
	if err != nil {
		return itimer.Value{}, err
	}
	if err := v.Validate(); err != nil {
		return itimer.Value{}, err
	}
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.timers.Set(pid, kind, v, k.jiffies)
}

// NextDeadline returns the tick of the earliest wall clock timer
func (k *Kernel) NextDeadline() (uint64, bool) {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.timers.NextDeadline()
}

// AccountUser charges the current tick to pid running in user mode
func (k *Kernel) AccountUser(pid itimer.PID) {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	k.timers.AccountUser(pid, k.fire)
}

// AccountSystem charges the current tick to pid running in system mode
func (k *Kernel) AccountSystem(pid itimer.PID) {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	k.timers.AccountSystem(pid, k.fire)
}
