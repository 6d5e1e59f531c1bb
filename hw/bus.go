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
Package hw describes the PC hardware the clock core talks to: an x86 style I/O port
bus, the 8253 interval timer, the master 8259 interrupt controller and the MC146818
CMOS calendar clock.

Machine is a simulated PC that implements Bus, used by the daemon, the CLI and tests.
*/
package hw

// Bus is an I/O port address space
type Bus interface {
	In8(port uint16) uint8
	Out8(port uint16, val uint8)
}

// I/O ports
const (
	PortPICMaster   uint16 = 0x20
	PortPITChannel0 uint16 = 0x40
	PortPITCommand  uint16 = 0x43
	PortCMOSAddr    uint16 = 0x70
	PortCMOSData    uint16 = 0x71
)

// PIT constants
const (
	// ClockTickRate is the input frequency of the 8253 in Hz
	ClockTickRate = 1193180
	// PITLatchChannel0 is the counter latch command for channel 0
	PITLatchChannel0 uint8 = 0x00
)

// PIC constants
const (
	// PICReadIRR selects the interrupt request register for the next read (OCW3)
	PICReadIRR uint8 = 0x0a
	// PICReadISR selects the in-service register for the next read (OCW3)
	PICReadISR uint8 = 0x0b
	// IRQTimer is the line PIT channel 0 is wired to
	IRQTimer = 0
)

// MC146818 registers
const (
	RTCSeconds    uint8 = 0x00
	RTCMinutes    uint8 = 0x02
	RTCHours      uint8 = 0x04
	RTCDayOfMonth uint8 = 0x07
	RTCMonth      uint8 = 0x08
	RTCYear       uint8 = 0x09
	// register A
	RTCFreqSelect uint8 = 0x0a
	// register B
	RTCControl uint8 = 0x0b
)

// MC146818 register bits
const (
	// RTCUIP is set in register A while the chip updates its calendar
	RTCUIP uint8 = 0x80
	// RTCDivReset2 in register A holds the divider chain in reset
	RTCDivReset2 uint8 = 0x60
	// RTCSet in register B stops updates so fields can be written
	RTCSet uint8 = 0x80
	// RTCDMBinary in register B selects binary instead of BCD fields
	RTCDMBinary uint8 = 0x04
	// RTC24H in register B selects the 24 hour mode
	RTC24H uint8 = 0x02
)

// Latch returns the PIT reload value giving hz interrupts per second
func Latch(hz, rate int) int {
	return (rate + hz/2) / hz
}
