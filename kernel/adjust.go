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
	"github.com/facebook/softclock/servo"
)

// AdjustClock applies a discipline request and returns the resulting state.
// A request with no modes only reads the state and needs no privilege.
// The returned status is advisory, callers should not treat BAD as a failure.
func (k *Kernel) AdjustClock(cred Credentials, req servo.Timex) (servo.Timex, error) {
	if req.Modes != 0 {
		if err := privileged(cred); err != nil {
			return servo.Timex{}, err
		}
	}
	if err := k.pll.Validate(req); err != nil {
		return servo.Timex{}, err
	}
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	if req.Modes != 0 {
		k.counters.Adjustments++
	}
	return k.pll.Apply(req, k.xtime), nil
}

// Status returns the synchronization state
func (k *Kernel) Status() servo.Status {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.pll.Status()
}
