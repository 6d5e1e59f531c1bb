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

package hw

import (
	"sync"
	"time"
)

// DefaultUpdateEvery is how many register A reads a simulated update cycle takes
const DefaultUpdateEvery = 8

// CMOS is a simulated MC146818 with 128 bytes of registers.
// The update cycle is driven by register A reads: every UpdateEvery-th read reports UIP.
type CMOS struct {
	sync.Mutex
	regs  [128]uint8
	index uint8
	reads int

	// UpdateEvery sets how often UIP is reported, 0 disables it
	UpdateEvery int
	// OnRead is called after every data port read with the register index, without the lock held
	OnRead func(reg uint8)
}

// NewCMOS returns a chip in 24 hour BCD mode with the divider running
func NewCMOS() *CMOS {
	c := &CMOS{UpdateEvery: DefaultUpdateEvery}
	c.regs[RTCFreqSelect] = 0x26
	c.regs[RTCControl] = RTC24H
	return c
}

// Register returns the raw value of reg
func (c *CMOS) Register(reg uint8) uint8 {
	c.Lock()
	defer c.Unlock()
	return c.regs[reg&0x7f]
}

// SetRegister stores a raw value, UIP in register A is read-only
func (c *CMOS) SetRegister(reg, val uint8) {
	c.Lock()
	defer c.Unlock()
	c.set(reg, val)
}

func (c *CMOS) set(reg, val uint8) {
	reg &= 0x7f
	if reg == RTCFreqSelect {
		val &^= RTCUIP
	}
	c.regs[reg] = val
}

// Snapshot returns a copy of all registers
func (c *CMOS) Snapshot() [128]uint8 {
	c.Lock()
	defer c.Unlock()
	return c.regs
}

// Binary tells if calendar fields are stored in binary rather than BCD
func (c *CMOS) Binary() bool {
	return c.Register(RTCControl)&RTCDMBinary != 0
}

// Load stores t as the calendar time, in the encoding register B selects
func (c *CMOS) Load(t time.Time) {
	t = t.UTC()
	c.Lock()
	defer c.Unlock()
	enc := func(v int) uint8 {
		if c.regs[RTCControl]&RTCDMBinary != 0 {
			return uint8(v)
		}
		return uint8(v/10)<<4 | uint8(v%10)
	}
	c.regs[RTCSeconds] = enc(t.Second())
	c.regs[RTCMinutes] = enc(t.Minute())
	c.regs[RTCHours] = enc(t.Hour())
	c.regs[RTCDayOfMonth] = enc(t.Day())
	c.regs[RTCMonth] = enc(int(t.Month()))
	c.regs[RTCYear] = enc(t.Year() % 100)
}

func (c *CMOS) selectRegister(val uint8) {
	c.Lock()
	c.index = val & 0x7f
	c.Unlock()
}

func (c *CMOS) read() uint8 {
	c.Lock()
	reg := c.index
	v := c.regs[reg]
	if reg == RTCFreqSelect {
		v |= c.uip()
	}
	hook := c.OnRead
	c.Unlock()
	if hook != nil {
		hook(reg)
	}
	return v
}

func (c *CMOS) write(val uint8) {
	c.Lock()
	defer c.Unlock()
	c.set(c.index, val)
}

// uip reports the update cycle, a halted divider or SET in register B stops it
func (c *CMOS) uip() uint8 {
	if c.UpdateEvery <= 0 {
		return 0
	}
	if c.regs[RTCFreqSelect]&0x70 == RTCDivReset2 || c.regs[RTCControl]&RTCSet != 0 {
		return 0
	}
	c.reads++
	if c.reads%c.UpdateEvery == 0 {
		return RTCUIP
	}
	return 0
}
