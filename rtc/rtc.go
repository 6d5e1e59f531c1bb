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
Package rtc talks to the battery-backed MC146818 calendar clock: it seeds the wall clock
once at boot and writes seconds and minutes back while the clock is synchronized.

All methods issue port I/O through hw.Bus and expect the caller to hold the interrupt mask.
*/
package rtc

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/softclock/hw"
)

// DefaultPollLimit bounds each wait on the update-in-progress flag
const DefaultPollLimit = 1000000

var (
	// ErrClockDriftTooLarge means the hardware minutes are too far off to patch in place
	ErrClockDriftTooLarge = errors.New("rtc drift too large")
	// ErrHardwareTimeout means the update-in-progress flag never changed
	ErrHardwareTimeout = errors.New("rtc hardware timeout")
)

// Config of the RTC bridge
type Config struct {
	PollLimit int  `yaml:"poll_limit"`
	ForceBCD  bool `yaml:"force_bcd"`
}

// DefaultConfig returns the bridge defaults
func DefaultConfig() Config {
	return Config{PollLimit: DefaultPollLimit}
}

// Bridge reads and writes the CMOS clock
type Bridge struct {
	bus hw.Bus
	cfg Config
}

// New returns a Bridge on bus
func New(bus hw.Bus, cfg Config) *Bridge {
	if cfg.PollLimit <= 0 {
		cfg.PollLimit = DefaultPollLimit
	}
	return &Bridge{bus: bus, cfg: cfg}
}

func (b *Bridge) read(reg uint8) uint8 {
	b.bus.Out8(hw.PortCMOSAddr, reg)
	return b.bus.In8(hw.PortCMOSData)
}

func (b *Bridge) write(reg, val uint8) {
	b.bus.Out8(hw.PortCMOSAddr, reg)
	b.bus.Out8(hw.PortCMOSData, val)
}

func (b *Bridge) bcd(control uint8) bool {
	return b.cfg.ForceBCD || control&hw.RTCDMBinary == 0
}

// waitUIP polls register A until UIP equals set, at most PollLimit reads
func (b *Bridge) waitUIP(set bool) bool {
	for i := 0; i < b.cfg.PollLimit; i++ {
		if (b.read(hw.RTCFreqSelect)&hw.RTCUIP != 0) == set {
			return true
		}
	}
	return false
}

// Read waits for an update cycle to start and end, then reads a consistent calendar.
// A missed update cycle is reported wrapped in ErrHardwareTimeout together with the
// calendar read regardless.
func (b *Bridge) Read() (Calendar, error) {
	var timeout error
	// the fields are stable for almost a second once an update has just finished
	if !b.waitUIP(true) {
		log.Warningf("rtc: update cycle did not start within %d reads", b.cfg.PollLimit)
		timeout = fmt.Errorf("%w: waiting for update to start", ErrHardwareTimeout)
	}
	if !b.waitUIP(false) {
		log.Warningf("rtc: update cycle did not finish within %d reads", b.cfg.PollLimit)
		timeout = fmt.Errorf("%w: waiting for update to finish", ErrHardwareTimeout)
	}

	var raw [6]uint8
	for tries := 0; ; tries++ {
		raw[0] = b.read(hw.RTCSeconds)
		raw[1] = b.read(hw.RTCMinutes)
		raw[2] = b.read(hw.RTCHours)
		raw[3] = b.read(hw.RTCDayOfMonth)
		raw[4] = b.read(hw.RTCMonth)
		raw[5] = b.read(hw.RTCYear)
		if raw[0] == b.read(hw.RTCSeconds) {
			break
		}
		if tries >= b.cfg.PollLimit {
			return Calendar{}, fmt.Errorf("%w: seconds kept changing", ErrHardwareTimeout)
		}
	}
	if b.bcd(b.read(hw.RTCControl)) {
		for i := range raw {
			raw[i] = BCDToBin(raw[i])
		}
	}
	return Calendar{
		Sec:  int(raw[0]),
		Min:  int(raw[1]),
		Hour: int(raw[2]),
		Day:  int(raw[3]),
		Mon:  int(raw[4]) - 1,
		Year: int(raw[5]),
	}, timeout
}

// Seed returns the calendar time as seconds since the epoch.
// ErrHardwareTimeout is returned along with a valid epoch and may be treated as a warning.
func (b *Bridge) Seed() (int64, error) {
	cal, timeout := b.Read()
	epoch, err := cal.Unix()
	if err != nil {
		return 0, err
	}
	log.Debugf("rtc: read %s (%d)", cal, epoch)
	return epoch, timeout
}

// Writeback patches seconds and minutes of the chip to match epoch. Hours are left alone
// so the chip may keep local time. If the chip minutes are more than 30 minutes away
// nothing is written and ErrClockDriftTooLarge is returned.
func (b *Bridge) Writeback(epoch int64) error {
	realSec := uint8(mod(epoch, 60))
	realMin := uint8(mod(epoch/60, 60))

	control := b.read(hw.RTCControl)
	freqSelect := b.read(hw.RTCFreqSelect) &^ hw.RTCUIP
	bcd := b.bcd(control)

	hwMin := b.read(hw.RTCMinutes)
	if bcd {
		hwMin = BCDToBin(hwMin)
	}
	diff := int(hwMin) - int(realMin)
	if diff < 0 {
		diff = -diff
	}
	if diff > 30 {
		return fmt.Errorf("%w: chip at minute %d, clock at minute %d", ErrClockDriftTooLarge, hwMin, realMin)
	}

	b.write(hw.RTCControl, control|hw.RTCSet)
	b.write(hw.RTCFreqSelect, freqSelect|hw.RTCDivReset2)
	defer func() {
		b.write(hw.RTCFreqSelect, freqSelect)
		b.write(hw.RTCControl, control)
	}()

	if bcd {
		realSec = BinToBCD(realSec)
		realMin = BinToBCD(realMin)
	}
	b.write(hw.RTCSeconds, realSec)
	b.write(hw.RTCMinutes, realMin)
	return nil
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
