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

package servo

import (
	"github.com/facebook/softclock/clock"
)

// Timex is both the adjustment request and the state snapshot returned for it.
// Modes selects which request fields are applied, see the clock.Adj* bits.
type Timex struct {
	Modes uint32
	// Offset is in microseconds. In the snapshot it is the single-shot adjustment
	// that was pending before the request.
	Offset    int64
	Freq      ScaledPPM
	MaxError  int64
	EstError  int64
	Status    Status
	Constant  int64
	Precision int64
	// Tolerance is the largest frequency error in ppm
	Tolerance int64
	Time      clock.Timeval
	// Tick is microseconds per tick
	Tick int64
}
