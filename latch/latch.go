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
Package latch reads how far the current tick has progressed from PIT channel 0.

The counter runs down from LATCH-1 to 0 once per tick. When the counter is close to its
reload value the tick that just wrapped it may not have been serviced yet; the master PIC
tells whether IRQ0 is still pending, in which case one whole tick is added.
*/
package latch

import (
	"github.com/facebook/softclock/hw"
)

// Reader interpolates sub-tick time from the PIT
type Reader struct {
	bus   hw.Bus
	latch int64
}

// New returns a Reader for a PIT programmed for hz interrupts per second from rate Hz
func New(bus hw.Bus, hz, rate int) *Reader {
	return &Reader{bus: bus, latch: int64(hw.Latch(hz, rate))}
}

// Latch returns the PIT reload value
func (r *Reader) Latch() int64 {
	return r.latch
}

// Count latches and returns the PIT channel 0 counter
func (r *Reader) Count() int64 {
	r.bus.Out8(hw.PortPITCommand, hw.PITLatchChannel0)
	count := int64(r.bus.In8(hw.PortPITChannel0))
	count |= int64(r.bus.In8(hw.PortPITChannel0)) << 8
	return count
}

// Offset returns the microseconds elapsed since the last serviced tick, tick being the
// current per-tick increment. The caller must hold the interrupt mask.
func (r *Reader) Offset(tick int64) int64 {
	count := r.Count()
	// only a missing or misprogrammed PIT reads above the reload value
	if count >= r.latch {
		count = r.latch - 1
	}
	var offset int64
	if count > r.latch-r.latch/100 {
		r.bus.Out8(hw.PortPICMaster, hw.PICReadIRR)
		if r.bus.In8(hw.PortPICMaster)&(1<<hw.IRQTimer) != 0 {
			offset = tick
		}
	}
	count = ((r.latch-1)-count)*tick + r.latch/2
	return offset + count/r.latch
}
