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
	"fmt"
	"math/bits"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/softclock/clock"
	"github.com/facebook/softclock/hw"
)

const (
	secondsPerDay = 86400
	// clockTickFactor keeps the fine tune arithmetic within 32 bits
	clockTickFactor = 20
	// DefaultTolerance is the largest frequency error, in ppm
	DefaultTolerance = 100
	// DefaultMaxInterval is the longest gap between offsets still used for frequency
	DefaultMaxInterval = 3 * 365 * 24 * time.Hour
)

// Config of the PLL
type Config struct {
	HZ            int           `yaml:"hz"`
	ClockTickRate int           `yaml:"clock_tick_rate"`
	MaxInterval   time.Duration `yaml:"max_interval"`
	// TickAdj is the largest single-shot slew per tick in microseconds
	TickAdj   int64 `yaml:"tick_adj"`
	Tolerance int64 `yaml:"tolerance"`
	Precision int64 `yaml:"precision"`
}

// DefaultConfig returns the PLL defaults for 100 Hz
func DefaultConfig() Config {
	return Config{
		HZ:            100,
		ClockTickRate: hw.ClockTickRate,
		MaxInterval:   DefaultMaxInterval,
		TickAdj:       500 / 100,
		Tolerance:     DefaultTolerance,
		Precision:     1,
	}
}

// Validate checks the configuration is usable by the fixed point arithmetic
func (c Config) Validate() error {
	if c.HZ < 16 || c.HZ > 1000 {
		return fmt.Errorf("hz %d out of range [16, 1000]", c.HZ)
	}
	if clock.USecPerSec%c.HZ != 0 {
		return fmt.Errorf("hz %d does not divide a second into whole microseconds", c.HZ)
	}
	if c.ClockTickRate < c.HZ*2 || c.ClockTickRate/c.HZ > 0xffff {
		return fmt.Errorf("clock tick rate %d unusable with hz %d", c.ClockTickRate, c.HZ)
	}
	if c.MaxInterval < 0 {
		return fmt.Errorf("max interval %v must not be negative", c.MaxInterval)
	}
	if c.TickAdj <= 0 {
		return fmt.Errorf("tick adj %d must be positive", c.TickAdj)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance %d must be positive", c.Tolerance)
	}
	return nil
}

// ShiftHZ returns log2(HZ) rounded to nearest
func ShiftHZ(hz int) uint {
	s := uint(bits.Len(uint(hz))) - 1
	// round up when the next bit below the top is set
	if s > 0 && hz&(1<<(s-1)) != 0 {
		s++
	}
	return s
}

// FineTune returns the per tick phase correcting for LATCH not dividing the PIT rate
func FineTune(hz, rate int) Phase {
	shift := ShiftHZ(hz)
	latch := int64(hw.Latch(hz, rate))
	ft := ((latch*int64(hz) - int64(rate)) << shift) * (clock.USecPerSec / clockTickFactor) / (int64(rate) / clockTickFactor)
	return Phase(ft<<(ShiftScale-shift)) / Phase(hz)
}

// PLL is the clock discipline state. It is not safe for concurrent use,
// the owner serializes access under the interrupt mask.
type PLL struct {
	hz          int64
	shiftHZ     uint
	fineTune    Phase
	tickAdj     int64
	maxInterval int64

	status     Status
	offset     Offset
	freq       Frequency
	maxError   int64
	estError   int64
	constant   int64
	precision  int64
	tolerance  int64
	reftime    int64
	adjust     int64
	adjustStep int64
	tick       int64
	phase      Phase
	adj        Phase
}

// New returns an unsynchronized PLL
func New(cfg Config) (*PLL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PLL{
		hz:          int64(cfg.HZ),
		shiftHZ:     ShiftHZ(cfg.HZ),
		fineTune:    FineTune(cfg.HZ, cfg.ClockTickRate),
		tickAdj:     cfg.TickAdj,
		maxInterval: int64(cfg.MaxInterval / time.Second),
		status:      StatusBad,
		maxError:    clock.ErrorSentinel,
		estError:    clock.ErrorSentinel,
		precision:   cfg.Precision,
		tolerance:   cfg.Tolerance,
		tick:        clock.USecPerSec / int64(cfg.HZ),
	}, nil
}

// Status returns the synchronization state
func (p *PLL) Status() Status {
	return p.status
}

// Tick returns the nominal microseconds per tick
func (p *PLL) Tick() int64 {
	return p.tick
}

// Pending returns the single-shot adjustment not yet slewed, in microseconds
func (p *PLL) Pending() int64 {
	return p.adjust
}

// Unsynchronize marks the clock as not synchronized, used when the time is stepped
func (p *PLL) Unsynchronize() {
	p.status = StatusBad
	p.maxError = clock.ErrorSentinel
	p.estError = clock.ErrorSentinel
}

// Validate checks a request without touching any state
func (p *PLL) Validate(req Timex) error {
	if req.Modes&clock.AdjOffset != 0 && (req.Offset <= -MaxPhase || req.Offset >= MaxPhase) {
		return fmt.Errorf("%w: offset %d out of range", clock.ErrInvalidArgument, req.Offset)
	}
	if req.Modes&clock.AdjStatus != 0 && !req.Status.Valid() {
		return fmt.Errorf("%w: status %d", clock.ErrInvalidArgument, req.Status)
	}
	if req.Modes&clock.AdjTimeConst != 0 && (req.Constant < 0 || req.Constant > MaxTC) {
		return fmt.Errorf("%w: time constant %d out of range [0, %d]", clock.ErrInvalidArgument, req.Constant, MaxTC)
	}
	if req.Modes&clock.AdjTick != 0 {
		lo, hi := 900000/p.hz, 1100000/p.hz
		if req.Tick < lo || req.Tick > hi {
			return fmt.Errorf("%w: tick %d out of range [%d, %d]", clock.ErrInvalidArgument, req.Tick, lo, hi)
		}
	}
	return nil
}

func (p *PLL) clampFreq(f Frequency) Frequency {
	limit := Frequency(p.tolerance) << ShiftKF
	if f > limit {
		return limit
	}
	if f < -limit {
		return -limit
	}
	return f
}

// Apply performs a validated request at wall time now and returns the resulting state.
// The returned Offset is the single-shot adjustment pending before the request.
func (p *PLL) Apply(req Timex, now clock.Timeval) Timex {
	saveAdjust := p.adjust
	if req.Modes != 0 {
		if p.status == StatusBad {
			p.status = StatusOK
		}
		if req.Modes&clock.AdjStatus != 0 {
			p.status = req.Status
		}
		if req.Modes&clock.AdjFrequency != 0 {
			p.freq = p.clampFreq(req.Freq.Frequency())
		}
		if req.Modes&clock.AdjMaxError != 0 {
			p.maxError = req.MaxError
		}
		if req.Modes&clock.AdjEstError != 0 {
			p.estError = req.EstError
		}
		if req.Modes&clock.AdjTimeConst != 0 {
			p.constant = req.Constant
		}
		if req.Modes&clock.AdjOffset != 0 {
			if req.Modes == clock.AdjOffsetSingleshot {
				p.adjust = req.Offset
			} else {
				p.setOffset(req.Offset, now.Sec)
			}
		}
		if req.Modes&clock.AdjTick != 0 {
			p.tick = req.Tick
		}
	}
	return p.snapshot(saveAdjust, now)
}

// setOffset records a phase offset and folds it into the frequency, scaled by the time
// since the previous offset
func (p *PLL) setOffset(us int64, now int64) {
	p.offset = OffsetFromUSec(us)
	elapsed := now - p.reftime
	p.reftime = now
	if elapsed < 0 || elapsed > p.maxInterval {
		elapsed = 0
	}
	shift := uint(2 * p.constant)
	if us < 0 {
		p.freq -= Frequency((-us * elapsed) >> shift)
	} else {
		p.freq += Frequency((us * elapsed) >> shift)
	}
	p.freq = p.clampFreq(p.freq)
}

// Snapshot returns the current state without changing it
func (p *PLL) Snapshot(now clock.Timeval) Timex {
	return p.snapshot(p.adjust, now)
}

func (p *PLL) snapshot(adjust int64, now clock.Timeval) Timex {
	return Timex{
		Offset:    adjust,
		Freq:      p.freq.ScaledPPM(),
		MaxError:  p.maxError,
		EstError:  p.estError,
		Status:    p.status,
		Constant:  p.constant,
		Precision: p.precision,
		Tolerance: p.tolerance,
		Time:      now,
		Tick:      p.tick,
	}
}

// Advance runs the per tick step and returns how many microseconds the wall clock moves
func (p *PLL) Advance() int64 {
	delta := p.tick + p.adjustStep
	p.phase += p.adj
	if p.phase < -FineUSec {
		us := -p.phase >> ShiftScale
		p.phase += us << ShiftScale
		delta -= int64(us)
	} else if p.phase > FineUSec {
		us := p.phase >> ShiftScale
		p.phase -= us << ShiftScale
		delta += int64(us)
	}

	// the single-shot step applies on the next tick
	p.adjustStep = 0
	if p.adjust != 0 {
		step := p.adjust
		if step > p.tickAdj {
			step = p.tickAdj
		} else if step < -p.tickAdj {
			step = -p.tickAdj
		}
		p.adjust -= step
		p.adjustStep = step
	}
	return delta
}

// SecondOverflow runs once per wall clock second, after now.Sec was incremented.
// It may move now.Sec by one second for a leap second.
func (p *PLL) SecondOverflow(now *clock.Timeval) {
	if clock.ErrorSentinel-p.maxError <= p.tolerance {
		p.maxError = clock.ErrorSentinel
	} else {
		p.maxError += p.tolerance
	}

	// slew a fraction of the remaining offset over the coming second
	shift := uint(ShiftKG + p.constant)
	switch {
	case p.offset < 0:
		slew := Phase((-(p.offset + 1))>>shift) + 1
		p.adj = slew << (ShiftScale - p.shiftHZ - ShiftUpdate)
		p.offset += Offset((int64(p.adj) * p.hz) >> (ShiftScale - ShiftUpdate))
		p.adj = -p.adj
	case p.offset > 0:
		slew := Phase((p.offset-1)>>shift) + 1
		p.adj = slew << (ShiftScale - p.shiftHZ - ShiftUpdate)
		p.offset -= Offset((int64(p.adj) * p.hz) >> (ShiftScale - ShiftUpdate))
	default:
		p.adj = 0
	}
	p.adj += Phase(p.freq>>(ShiftKF+p.shiftHZ-ShiftScale)) + p.fineTune

	switch p.status {
	case StatusInsert:
		if now.Sec%secondsPerDay == 0 {
			now.Sec--
			p.status = StatusOOP
			log.Infof("clock: inserting leap second at %d", now.Sec+1)
		}
	case StatusDelete:
		if now.Sec%secondsPerDay == secondsPerDay-1 {
			now.Sec++
			p.status = StatusOK
			log.Infof("clock: deleting leap second at %d", now.Sec-1)
		}
	case StatusOOP:
		p.status = StatusOK
	}
}
