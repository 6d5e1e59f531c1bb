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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	require.Equal(t, 11932, Latch(100, ClockTickRate))
	require.Equal(t, 1193, Latch(1000, ClockTickRate))
}

func TestPITLatchedRead(t *testing.T) {
	m := NewMachine(100)
	m.PIT.SetCount(0x1234)
	m.Out8(PortPITCommand, PITLatchChannel0)
	m.PIT.SetCount(0x0001)
	require.Equal(t, uint8(0x34), m.In8(PortPITChannel0))
	require.Equal(t, uint8(0x12), m.In8(PortPITChannel0))
	// latch released, live count follows
	require.Equal(t, uint8(0x01), m.In8(PortPITChannel0))
	require.Equal(t, uint8(0x00), m.In8(PortPITChannel0))
}

func TestPICReadIRR(t *testing.T) {
	m := NewMachine(100)
	m.Out8(PortPICMaster, PICReadIRR)
	require.Equal(t, uint8(0), m.In8(PortPICMaster))
	m.PIC.Raise(IRQTimer)
	require.Equal(t, uint8(1), m.In8(PortPICMaster)&1)
	m.PIC.Ack(IRQTimer)
	require.False(t, m.PIC.Pending(IRQTimer))
}

func TestTickAcknowledges(t *testing.T) {
	m := NewMachine(100)
	pending := false
	m.Tick(func() { pending = m.PIC.Pending(IRQTimer) })
	require.True(t, pending)
	require.False(t, m.PIC.Pending(IRQTimer))
}

func TestMissingDevicesFloat(t *testing.T) {
	m := &Machine{}
	m.Out8(PortCMOSAddr, RTCSeconds)
	require.Equal(t, floating, m.In8(PortCMOSData))
	require.Equal(t, floating, m.In8(PortPITChannel0))
	require.Equal(t, floating, m.In8(0x1234))
}

func TestCMOSLoadBCD(t *testing.T) {
	c := NewCMOS()
	c.Load(time.Date(1993, time.January, 1, 23, 59, 58, 0, time.UTC))
	require.Equal(t, uint8(0x58), c.Register(RTCSeconds))
	require.Equal(t, uint8(0x59), c.Register(RTCMinutes))
	require.Equal(t, uint8(0x23), c.Register(RTCHours))
	require.Equal(t, uint8(0x01), c.Register(RTCDayOfMonth))
	require.Equal(t, uint8(0x01), c.Register(RTCMonth))
	require.Equal(t, uint8(0x93), c.Register(RTCYear))
}

func TestCMOSLoadBinary(t *testing.T) {
	c := NewCMOS()
	c.SetRegister(RTCControl, RTC24H|RTCDMBinary)
	require.True(t, c.Binary())
	c.Load(time.Date(2024, time.December, 31, 12, 30, 45, 0, time.UTC))
	require.Equal(t, uint8(45), c.Register(RTCSeconds))
	require.Equal(t, uint8(30), c.Register(RTCMinutes))
	require.Equal(t, uint8(12), c.Register(RTCMonth))
	require.Equal(t, uint8(24), c.Register(RTCYear))
}

func TestCMOSUpdateCycle(t *testing.T) {
	m := NewMachine(100)
	m.CMOS.UpdateEvery = 3
	var seen []bool
	for i := 0; i < 6; i++ {
		m.Out8(PortCMOSAddr, RTCFreqSelect)
		seen = append(seen, m.In8(PortCMOSData)&RTCUIP != 0)
	}
	require.Equal(t, []bool{false, false, true, false, false, true}, seen)

	// divider held in reset: no updates
	m.CMOS.SetRegister(RTCFreqSelect, 0x26|RTCDivReset2)
	for i := 0; i < 6; i++ {
		m.Out8(PortCMOSAddr, RTCFreqSelect)
		require.Zero(t, m.In8(PortCMOSData)&RTCUIP)
	}
}

func TestCMOSUIPReadOnly(t *testing.T) {
	c := NewCMOS()
	c.SetRegister(RTCFreqSelect, 0xa6)
	require.Equal(t, uint8(0x26), c.Register(RTCFreqSelect))
}

func TestFreeRunning(t *testing.T) {
	m := NewMachine(100)
	m.FreeRunning()
	m.Tick(func() {})
	m.Out8(PortPITCommand, PITLatchChannel0)
	count := uint16(m.In8(PortPITChannel0)) | uint16(m.In8(PortPITChannel0))<<8
	require.Less(t, count, m.PIT.Reload())
}

func TestFreeRunningHoldsWhenTickIsLate(t *testing.T) {
	m := NewMachine(100)
	m.FreeRunning()
	m.mu.Lock()
	m.lastTick = time.Now().Add(-15 * time.Millisecond)
	m.mu.Unlock()
	m.Out8(PortPITCommand, PITLatchChannel0)
	count := uint16(m.In8(PortPITChannel0)) | uint16(m.In8(PortPITChannel0))<<8
	require.Equal(t, uint16(0), count)
	require.True(t, m.PIC.Pending(IRQTimer))

	m.Tick(func() {})
	require.False(t, m.PIC.Pending(IRQTimer))
}
