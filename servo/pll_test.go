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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/softclock/clock"
)

func newPLL(t *testing.T) *PLL {
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	return p
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "hz too low", modify: func(c *Config) { c.HZ = 10 }},
		{name: "hz too high", modify: func(c *Config) { c.HZ = 2000 }},
		{name: "hz not dividing", modify: func(c *Config) { c.HZ = 30 }},
		{name: "rate", modify: func(c *Config) { c.ClockTickRate = 0 }},
		{name: "interval", modify: func(c *Config) { c.MaxInterval = -time.Second }},
		{name: "tickadj", modify: func(c *Config) { c.TickAdj = 0 }},
		{name: "tolerance", modify: func(c *Config) { c.Tolerance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			require.Error(t, c.Validate())
			_, err := New(c)
			require.Error(t, err)
		})
	}
}

func TestNewIsUnsynchronized(t *testing.T) {
	p := newPLL(t)
	s := p.Snapshot(clock.Timeval{Sec: 5})
	require.Equal(t, StatusBad, s.Status)
	require.Equal(t, clock.ErrorSentinel, s.MaxError)
	require.Equal(t, clock.ErrorSentinel, s.EstError)
	require.Equal(t, int64(10000), s.Tick)
	require.Equal(t, int64(DefaultTolerance), s.Tolerance)
	require.Equal(t, clock.Timeval{Sec: 5}, s.Time)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Timex
		ok   bool
	}{
		{name: "empty", req: Timex{}, ok: true},
		{name: "offset max", req: Timex{Modes: clock.AdjOffset, Offset: MaxPhase - 1}, ok: true},
		{name: "offset too big", req: Timex{Modes: clock.AdjOffset, Offset: MaxPhase}},
		{name: "offset too small", req: Timex{Modes: clock.AdjOffset, Offset: -MaxPhase}},
		{name: "singleshot too big", req: Timex{Modes: clock.AdjOffsetSingleshot, Offset: 1 << 17}},
		{name: "offset ignored without mode", req: Timex{Offset: 1 << 20}, ok: true},
		{name: "status bad", req: Timex{Modes: clock.AdjStatus, Status: StatusBad}, ok: true},
		{name: "status unknown", req: Timex{Modes: clock.AdjStatus, Status: 6}},
		{name: "constant", req: Timex{Modes: clock.AdjTimeConst, Constant: MaxTC}, ok: true},
		{name: "constant negative", req: Timex{Modes: clock.AdjTimeConst, Constant: -1}},
		{name: "tick low", req: Timex{Modes: clock.AdjTick, Tick: 9000}, ok: true},
		{name: "tick too low", req: Timex{Modes: clock.AdjTick, Tick: 8999}},
		{name: "tick too high", req: Timex{Modes: clock.AdjTick, Tick: 11001}},
	}
	p := newPLL(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.req)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, clock.ErrInvalidArgument)
			}
		})
	}
}

func TestApplyQueryKeepsBad(t *testing.T) {
	p := newPLL(t)
	s := p.Apply(Timex{}, clock.Timeval{})
	require.Equal(t, StatusBad, s.Status)
	s = p.Apply(Timex{Modes: clock.AdjMaxError, MaxError: 10}, clock.Timeval{})
	require.Equal(t, StatusOK, s.Status)
	require.Equal(t, int64(10), s.MaxError)
}

func TestApplyFrequencyIntegration(t *testing.T) {
	p := newPLL(t)
	s := p.Apply(Timex{Modes: clock.AdjOffset, Offset: 100}, clock.Timeval{Sec: 10})
	require.Equal(t, ScaledPPM(62), s.Freq)
	s = p.Apply(Timex{Modes: clock.AdjOffset, Offset: 100}, clock.Timeval{Sec: 26})
	require.Equal(t, ScaledPPM(162), s.Freq)
	s = p.Apply(Timex{Modes: clock.AdjOffset, Offset: -100}, clock.Timeval{Sec: 36})
	require.Equal(t, ScaledPPM(100), s.Freq)

	// time constant 1 quarters the gain
	p.Apply(Timex{Modes: clock.AdjTimeConst | clock.AdjFrequency, Constant: 1}, clock.Timeval{Sec: 36})
	s = p.Apply(Timex{Modes: clock.AdjOffset, Offset: 400}, clock.Timeval{Sec: 46})
	require.Equal(t, ScaledPPM(62), s.Freq)
}

func TestApplyElapsedOutOfRange(t *testing.T) {
	p := newPLL(t)
	year := int64(365 * 24 * 3600)
	s := p.Apply(Timex{Modes: clock.AdjOffset, Offset: 1000}, clock.Timeval{Sec: 4 * year})
	require.Equal(t, ScaledPPM(0), s.Freq)
	// clock went backwards
	s = p.Apply(Timex{Modes: clock.AdjOffset, Offset: 1000}, clock.Timeval{Sec: year})
	require.Equal(t, ScaledPPM(0), s.Freq)
}

func TestApplyFrequencyClamped(t *testing.T) {
	p := newPLL(t)
	limit := ScaledPPM(DefaultTolerance << ShiftUSec)
	s := p.Apply(Timex{Modes: clock.AdjOffset, Offset: MaxPhase - 1}, clock.Timeval{Sec: 1000000})
	require.Equal(t, limit, s.Freq)
	s = p.Apply(Timex{Modes: clock.AdjOffset, Offset: -(MaxPhase - 1)}, clock.Timeval{Sec: 3000000})
	require.Equal(t, -limit, s.Freq)

	s = p.Apply(Timex{Modes: clock.AdjFrequency, Freq: 200 << ShiftUSec}, clock.Timeval{})
	require.Equal(t, limit, s.Freq)
	s = p.Apply(Timex{Modes: clock.AdjFrequency, Freq: 1 << ShiftUSec}, clock.Timeval{})
	require.Equal(t, ScaledPPM(1<<ShiftUSec), s.Freq)
}

func TestSingleShot(t *testing.T) {
	tests := []struct {
		name   string
		offset int64
		deltas []int64
	}{
		{name: "forward", offset: 12, deltas: []int64{10000, 10005, 10005, 10002, 10000}},
		{name: "backward", offset: -7, deltas: []int64{10000, 9995, 9998, 10000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPLL(t)
			s := p.Apply(Timex{Modes: clock.AdjOffsetSingleshot, Offset: tt.offset}, clock.Timeval{})
			require.Equal(t, int64(0), s.Offset)
			require.Equal(t, tt.offset, p.Pending())
			for i, want := range tt.deltas {
				require.Equal(t, want, p.Advance(), "tick %d", i)
			}
			require.Equal(t, int64(0), p.Pending())
		})
	}
}

func TestSingleShotReturnsPrevious(t *testing.T) {
	p := newPLL(t)
	p.Apply(Timex{Modes: clock.AdjOffsetSingleshot, Offset: 300}, clock.Timeval{})
	s := p.Apply(Timex{Modes: clock.AdjOffsetSingleshot, Offset: 50}, clock.Timeval{})
	require.Equal(t, int64(300), s.Offset)
	require.Equal(t, int64(50), p.Pending())
}

func TestAdvanceNominal(t *testing.T) {
	p := newPLL(t)
	for i := 0; i < 100; i++ {
		require.Equal(t, int64(10000), p.Advance())
	}
}

func TestAdvanceFineTune(t *testing.T) {
	p := newPLL(t)
	p.SecondOverflow(&clock.Timeval{Sec: 1})
	var sum int64
	for i := 0; i < 100; i++ {
		sum += p.Advance()
	}
	// 100 ticks of 11932 PIT counts last 16.76us longer than a second
	require.Equal(t, int64(1000016), sum)
}

func TestPhaseSlew(t *testing.T) {
	p := newPLL(t)
	p.Apply(Timex{Modes: clock.AdjOffset, Offset: 1000}, clock.Timeval{})
	p.SecondOverflow(&clock.Timeval{Sec: 1})
	require.Equal(t, OffsetFromUSec(1000)-50000, p.offset)
	var sum int64
	for i := 0; i < 100; i++ {
		sum += p.Advance()
	}
	require.Equal(t, int64(1000019), sum)
}

func TestTickOverride(t *testing.T) {
	p := newPLL(t)
	s := p.Apply(Timex{Modes: clock.AdjTick, Tick: 10010}, clock.Timeval{})
	require.Equal(t, int64(10010), s.Tick)
	require.Equal(t, int64(10010), p.Advance())
}

func TestMaxErrorGrows(t *testing.T) {
	p := newPLL(t)
	p.Apply(Timex{Modes: clock.AdjMaxError, MaxError: 100}, clock.Timeval{})
	p.SecondOverflow(&clock.Timeval{Sec: 1})
	require.Equal(t, int64(200), p.Snapshot(clock.Timeval{}).MaxError)

	p.Apply(Timex{Modes: clock.AdjMaxError, MaxError: clock.ErrorSentinel - 50}, clock.Timeval{})
	p.SecondOverflow(&clock.Timeval{Sec: 2})
	require.Equal(t, clock.ErrorSentinel, p.Snapshot(clock.Timeval{}).MaxError)
	p.SecondOverflow(&clock.Timeval{Sec: 3})
	require.Equal(t, clock.ErrorSentinel, p.Snapshot(clock.Timeval{}).MaxError)
}

func TestLeapInsert(t *testing.T) {
	p := newPLL(t)
	midnight := int64(8766 * 86400)
	p.Apply(Timex{Modes: clock.AdjStatus, Status: StatusInsert}, clock.Timeval{})

	now := clock.Timeval{Sec: midnight - 1}
	p.SecondOverflow(&now)
	require.Equal(t, midnight-1, now.Sec)
	require.Equal(t, StatusInsert, p.Status())

	now.Sec++
	p.SecondOverflow(&now)
	require.Equal(t, midnight-1, now.Sec)
	require.Equal(t, StatusOOP, p.Status())

	now.Sec++
	p.SecondOverflow(&now)
	require.Equal(t, midnight, now.Sec)
	require.Equal(t, StatusOK, p.Status())
}

func TestLeapDelete(t *testing.T) {
	p := newPLL(t)
	midnight := int64(8766 * 86400)
	p.Apply(Timex{Modes: clock.AdjStatus, Status: StatusDelete}, clock.Timeval{})

	now := clock.Timeval{Sec: midnight - 2}
	p.SecondOverflow(&now)
	require.Equal(t, StatusDelete, p.Status())

	now.Sec++
	p.SecondOverflow(&now)
	require.Equal(t, midnight, now.Sec)
	require.Equal(t, StatusOK, p.Status())
}

func TestUnsynchronize(t *testing.T) {
	p := newPLL(t)
	p.Apply(Timex{Modes: clock.AdjMaxError | clock.AdjEstError, MaxError: 1, EstError: 1}, clock.Timeval{})
	require.Equal(t, StatusOK, p.Status())
	p.Unsynchronize()
	s := p.Snapshot(clock.Timeval{})
	require.Equal(t, StatusBad, s.Status)
	require.Equal(t, clock.ErrorSentinel, s.MaxError)
	require.Equal(t, clock.ErrorSentinel, s.EstError)
}
