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
	"errors"
	"math"
)

// PPBToTimexPPM is what we use to conver PPB to PPM.
// In struct timex, freq is ppm (parts per million) with a 16-bit fractional part.
// To covert value where 2^16=65536 is 1 ppm to ppb or back, we need this multiplier
const PPBToTimexPPM = 65.536

// adjtimex modes
const (
	// time offset
	AdjOffset uint32 = 0x0001
	// frequency offset
	AdjFrequency uint32 = 0x0002
	// maximum time error
	AdjMaxError uint32 = 0x0004
	// estimated time error
	AdjEstError uint32 = 0x0008
	// clock status
	AdjStatus uint32 = 0x0010
	// pll time constant
	AdjTimeConst uint32 = 0x0020
	// tick value
	AdjTick uint32 = 0x4000
	// old-fashioned adjtime, offset is slewed in tick sized steps
	AdjOffsetSingleshot uint32 = 0x8001
)

// ErrorSentinel is what max and estimated error are set to when the clock was stepped
// and nothing is known about its accuracy.
const ErrorSentinel int64 = 0x70000000

// Errors shared by every layer of the clock core. Callers match them with errors.Is.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("operation not permitted")
	ErrAccessDenied     = errors.New("bad address")
)

// ScaledPPMToPPB converts timex frequency (ppm with 16-bit fraction) to PPB
func ScaledPPMToPPB(freq int64) float64 {
	return float64(freq) / PPBToTimexPPM
}

// PPBToScaledPPM converts PPB to timex frequency (ppm with 16-bit fraction)
func PPBToScaledPPM(freqPPB float64) int64 {
	return int64(math.Round(freqPPB * PPBToTimexPPM))
}
