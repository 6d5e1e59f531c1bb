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
Package kernel is the process-wide clock context: the tick counter, the wall clock,
clock discipline, interval timers and the RTC bridge, all guarded by one interrupt mask.

Interrupt is called once per PIT interrupt. Everything else is called from process
context; arguments are validated before the mask is taken.
*/
package kernel

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/softclock/clock"
	"github.com/facebook/softclock/hw"
	"github.com/facebook/softclock/irq"
	"github.com/facebook/softclock/itimer"
	"github.com/facebook/softclock/latch"
	"github.com/facebook/softclock/rtc"
	"github.com/facebook/softclock/servo"
)

//go:generate mockgen -source=kernel.go -destination=mock_signaler.go -package=kernel Signaler

// rtcSyncPeriod is how often a synchronized clock is written back to the RTC, in seconds
const rtcSyncPeriod = 11 * 60

// Credentials of the calling process
type Credentials interface {
	IsPrivileged() bool
}

// Signaler queues a signal for a process. It is called under the interrupt mask
// and must not block.
type Signaler interface {
	Deliver(pid itimer.PID, sig unix.Signal)
}

// Privilege is Credentials that are either privileged or not
type Privilege bool

// Credentials for tools and tests
const (
	Root Privilege = true
	User Privilege = false
)

// IsPrivileged implements Credentials
func (p Privilege) IsPrivileged() bool {
	return bool(p)
}

// Config of the clock core
type Config struct {
	Clock   servo.Config `yaml:"clock"`
	RTC     rtc.Config   `yaml:"rtc"`
	RTCSync bool         `yaml:"rtc_sync"`
}

// DefaultConfig returns the defaults for a 100 Hz PC
func DefaultConfig() Config {
	return Config{
		Clock: servo.DefaultConfig(),
		RTC:   rtc.DefaultConfig(),
	}
}

// Counters are running totals kept by the kernel
type Counters struct {
	Ticks         uint64
	Signals       uint64
	LeapSeconds   uint64
	Steps         uint64
	Adjustments   uint64
	RTCSyncs      uint64
	RTCSyncErrors uint64
	// Processes is the number of processes owning timers
	Processes int
	// ArmedTimers is the number of armed wall clock timers
	ArmedTimers int
	// PendingAdjust is the single-shot adjustment not yet slewed, in microseconds
	PendingAdjust int64
	// MaskedSections is how many times interrupts were masked
	MaskedSections uint64
}

// Kernel is the clock context
type Kernel struct {
	cfg     Config
	mask    *irq.Mask
	latch   *latch.Reader
	rtc     *rtc.Bridge
	pll     *servo.PLL
	timers  *itimer.Registry
	signals Signaler
	fire    itimer.FireFunc

	jiffies       uint64
	xtime         clock.Timeval
	tz            Timezone
	tzSet         bool
	lastRTCUpdate int64
	counters      Counters
	boot          sync.Once
}

// New returns a kernel on bus. Boot must be called before the first Interrupt.
func New(cfg Config, bus hw.Bus, signals Signaler) (*Kernel, error) {
	pll, err := servo.New(cfg.Clock)
	if err != nil {
		return nil, err
	}
	k := &Kernel{
		cfg:     cfg,
		mask:    irq.New(),
		latch:   latch.New(bus, cfg.Clock.HZ, cfg.Clock.ClockTickRate),
		rtc:     rtc.New(bus, cfg.RTC),
		pll:     pll,
		timers:  itimer.NewRegistry(cfg.Clock.HZ),
		signals: signals,
	}
	k.fire = k.deliver
	return k, nil
}

// Boot seeds the wall clock from the RTC, only the first call has an effect.
// A calendar that cannot be read leaves the clock at the epoch and is returned as error;
// an RTC that never signals its update cycle is only logged.
func (k *Kernel) Boot() error {
	var err error
	k.boot.Do(func() {
		state := k.mask.Disable()
		defer k.mask.Restore(state)
		epoch, serr := k.rtc.Seed()
		switch {
		case serr == nil:
		case errors.Is(serr, rtc.ErrHardwareTimeout):
			log.Warningf("boot: %v, using the calendar anyway", serr)
		default:
			log.Errorf("boot: %v, starting at the epoch", serr)
			epoch = 0
			err = serr
		}
		k.xtime = clock.Timeval{Sec: epoch}
		log.Infof("boot: wall clock seeded at %d", epoch)
	})
	return err
}

// HZ returns ticks per second
func (k *Kernel) HZ() int {
	return k.cfg.Clock.HZ
}

// Mask returns the interrupt mask guarding the kernel state
func (k *Kernel) Mask() *irq.Mask {
	return k.mask
}

// CurrentTick returns the number of interrupts since boot, wrapping at 2^64
func (k *Kernel) CurrentTick() uint64 {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	return k.jiffies
}

// Counters returns a copy of the running totals
func (k *Kernel) Counters() Counters {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	c := k.counters
	c.Ticks = k.jiffies
	c.Processes = k.timers.Len()
	c.ArmedTimers = k.timers.Armed()
	c.PendingAdjust = k.pll.Pending()
	c.MaskedSections = k.mask.Sections()
	return c
}

// Interrupt is the timer interrupt handler: it advances the tick counter, expires
// wall clock timers and advances the wall clock
func (k *Kernel) Interrupt() {
	state := k.mask.Disable()
	defer k.mask.Restore(state)
	k.jiffies++
	k.timers.Tick(k.jiffies, k.fire)
	k.advanceWall()
}

func (k *Kernel) deliver(pid itimer.PID, kind itimer.Kind) {
	k.counters.Signals++
	k.signals.Deliver(pid, kind.Signal())
}

func (k *Kernel) advanceWall() {
	k.xtime.Usec += k.pll.Advance()
	if k.xtime.Usec < clock.USecPerSec {
		return
	}
	k.xtime.Usec -= clock.USecPerSec
	k.xtime.Sec++
	sec := k.xtime.Sec
	k.pll.SecondOverflow(&k.xtime)
	if k.xtime.Sec != sec {
		k.counters.LeapSeconds++
	}
	if k.cfg.RTCSync && k.pll.Status() != servo.StatusBad && k.xtime.Sec > k.lastRTCUpdate+rtcSyncPeriod {
		k.syncRTC()
	}
}

func (k *Kernel) syncRTC() {
	k.lastRTCUpdate = k.xtime.Sec
	if err := k.rtc.Writeback(k.xtime.Sec); err != nil {
		k.counters.RTCSyncErrors++
		log.Warningf("rtc: %v", err)
		return
	}
	k.counters.RTCSyncs++
}
