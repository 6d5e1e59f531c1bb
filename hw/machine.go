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

// floating is what a read from an unpopulated port returns
const floating uint8 = 0xff

// Machine is a simulated PC: PIT channel 0, master PIC and CMOS clock on one port bus.
// A nil device reads as a floating bus and ignores writes.
type Machine struct {
	PIT  *PIT
	PIC  *PIC
	CMOS *CMOS

	rate     int
	mu       sync.Mutex
	lastTick time.Time
}

// NewMachine returns a machine whose PIT interrupts hz times per second
func NewMachine(hz int) *Machine {
	return &Machine{
		PIT:      NewPIT(uint16(Latch(hz, ClockTickRate))),
		PIC:      &PIC{},
		CMOS:     NewCMOS(),
		rate:     ClockTickRate,
		lastTick: time.Now(),
	}
}

// In8 reads a byte from port
func (m *Machine) In8(port uint16) uint8 {
	switch port {
	case PortPITChannel0:
		if m.PIT != nil {
			return m.PIT.read()
		}
	case PortPICMaster:
		if m.PIC != nil {
			return m.PIC.read()
		}
	case PortCMOSData:
		if m.CMOS != nil {
			return m.CMOS.read()
		}
	}
	return floating
}

// Out8 writes a byte to port
func (m *Machine) Out8(port uint16, val uint8) {
	switch port {
	case PortPITCommand:
		if m.PIT != nil {
			m.PIT.command(val)
		}
	case PortPICMaster:
		if m.PIC != nil {
			m.PIC.command(val)
		}
	case PortCMOSAddr:
		if m.CMOS != nil {
			m.CMOS.selectRegister(val)
		}
	case PortCMOSData:
		if m.CMOS != nil {
			m.CMOS.write(val)
		}
	}
}

// Tick raises IRQ0, runs the handler and acknowledges the interrupt
func (m *Machine) Tick(handler func()) {
	m.PIC.Raise(IRQTimer)
	handler()
	m.mu.Lock()
	m.lastTick = time.Now()
	m.mu.Unlock()
	m.PIC.Ack(IRQTimer)
}

// FreeRunning drives the PIT counter from host monotonic time elapsed since the last tick.
// A counter that already wrapped raises IRQ0 and holds at zero until the next Tick,
// so a late tick never makes the interpolated time run backwards.
func (m *Machine) FreeRunning() {
	reload := uint64(m.PIT.Reload())
	m.PIT.SetSource(func() uint16 {
		m.mu.Lock()
		elapsed := time.Since(m.lastTick)
		m.mu.Unlock()
		counts := uint64(elapsed) * uint64(m.rate) / uint64(time.Second)
		if counts >= reload {
			m.PIC.Raise(IRQTimer)
			counts = reload - 1
		}
		return uint16(reload - 1 - counts)
	})
}
