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
Package servo implements the clock discipline: a software phase-locked loop that slews
the wall clock by a recorded offset, integrates a frequency correction, applies
single-shot adjustments and carries leap second state.

All arithmetic is fixed point. Each quantity has its own type so scales cannot be mixed:

	Phase      microseconds << ShiftScale
	Frequency  ppm << ShiftKF
	ScaledPPM  ppm << ShiftUSec, the unit exposed to callers
	Offset     microseconds << ShiftUpdate
*/
package servo

// Fixed point scales
const (
	// ShiftKG is the phase gain
	ShiftKG = 8
	// ShiftKF is the frequency scale and gain
	ShiftKF = 20
	// MaxTC is the largest time constant
	MaxTC = 6
	// ShiftScale is the phase scale
	ShiftScale = 24
	// ShiftUpdate is the offset scale
	ShiftUpdate = ShiftKG + MaxTC
	// ShiftUSec is the scale of frequencies exchanged with callers
	ShiftUSec = 16

	// FineUSec is one microsecond of phase
	FineUSec Phase = 1 << ShiftScale
	// MaxPhase bounds offsets accepted from callers, in microseconds (exclusive)
	MaxPhase = 1 << (31 - ShiftUpdate)
)

// Phase is a sub-microsecond amount of time
type Phase int64

// Frequency is a rate correction
type Frequency int64

// ScaledPPM is a rate correction in ppm with 16 fractional bits
type ScaledPPM int64

// Offset is a phase error still to be slewed
type Offset int64

// Frequency converts to the internal scale
func (s ScaledPPM) Frequency() Frequency {
	return Frequency(s) << (ShiftKF - ShiftUSec)
}

// ScaledPPM converts to the caller scale, biased by one before the arithmetic shift
func (f Frequency) ScaledPPM() ScaledPPM {
	return ScaledPPM((f + 1) >> (ShiftKF - ShiftUSec))
}

// PPM returns the frequency as floating point ppm
func (s ScaledPPM) PPM() float64 {
	return float64(s) / (1 << ShiftUSec)
}

// OffsetFromUSec scales microseconds to an Offset
func OffsetFromUSec(us int64) Offset {
	return Offset(us << ShiftUpdate)
}

// USec returns the whole microseconds of o, rounded toward negative infinity
func (o Offset) USec() int64 {
	return int64(o >> ShiftUpdate)
}

// Status is the clock synchronization state
type Status int32

// All the states of the clock
const (
	StatusOK     Status = 0
	StatusInsert Status = 1
	StatusDelete Status = 2
	StatusOOP    Status = 3
	StatusWait   Status = 4
	StatusBad    Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInsert:
		return "INSERT"
	case StatusDelete:
		return "DELETE"
	case StatusOOP:
		return "OOP"
	case StatusWait:
		return "WAIT"
	case StatusBad:
		return "BAD"
	}
	return "UNSUPPORTED"
}

// Valid tells if s is one of the defined states
func (s Status) Valid() bool {
	return s >= StatusOK && s <= StatusBad
}
