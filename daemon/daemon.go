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

package daemon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/facebook/softclock/clock"
	"github.com/facebook/softclock/hw"
	"github.com/facebook/softclock/itimer"
	"github.com/facebook/softclock/kernel"
	"github.com/facebook/softclock/servo"
)

var errNotEnoughData = fmt.Errorf("not enough data points")

// PID is the process softclockd registers itself as in the simulated kernel
const PID itimer.PID = 1

// alarms forwards timer signals to the stats loop without ever blocking the tick
type alarms struct {
	c       chan unix.Signal
	dropped atomic.Int64
}

func newAlarms() *alarms {
	return &alarms{c: make(chan unix.Signal, 1)}
}

// Deliver implements kernel.Signaler
func (a *alarms) Deliver(pid itimer.PID, sig unix.Signal) {
	if pid != PID {
		log.Warningf("signal %v for unknown process %d", sig, pid)
		return
	}
	select {
	case a.c <- sig:
	default:
		a.dropped.Add(1)
	}
}

// Daemon is a component of softclock that
// runs the simulated machine at HZ,
// disciplines the kernel clock against the host clock
// and exports what the kernel knows about its accuracy.
type Daemon struct {
	cfg     *Config
	state   *daemonState
	stats   StatsServer
	l       Logger
	machine *hw.Machine
	k       *kernel.Kernel
	alarms  *alarms
	sys     SysStats

	// host reference clock
	hostNow func() time.Time
}

// New creates new softclockd. The CMOS starts out holding host UTC time.
func New(cfg *Config, stats StatsServer, l Logger) (*Daemon, error) {
	machine := hw.NewMachine(cfg.Kernel.Clock.HZ)
	machine.CMOS.Load(time.Now().UTC())
	machine.FreeRunning()

	s := &Daemon{
		cfg:     cfg,
		state:   newDaemonState(cfg.RingSize),
		stats:   stats,
		l:       l,
		machine: machine,
		alarms:  newAlarms(),
		hostNow: time.Now,
	}
	k, err := kernel.New(cfg.Kernel, machine, s.alarms)
	if err != nil {
		return nil, fmt.Errorf("creating kernel: %w", err)
	}
	s.k = k
	if err := k.Boot(); err != nil {
		log.Errorf("booting kernel: %v", err)
		s.stats.UpdateCounterBy("boot_error", 1)
	}
	k.ProcessCreated(PID)

	if h, err := cfg.Hash(); err != nil {
		log.Warningf("hashing config: %v", err)
	} else {
		s.stats.SetCounter("config_hash", int64(h))
	}

	// values from the discipline loop
	s.stats.SetCounter("offset_us", 0)
	s.stats.SetCounter("freq_ppb", 0)
	s.stats.SetCounter("max_error_us", 0)
	s.stats.SetCounter("est_error_us", 0)
	s.stats.SetCounter("status", int64(servo.StatusBad))
	// error counters
	s.stats.SetCounter("adjust_error", 0)
	s.stats.SetCounter("step_error", 0)
	s.stats.SetCounter("math_error", 0)
	s.stats.SetCounter("alarms_dropped", 0)
	return s, nil
}

// Kernel returns the simulated kernel
func (s *Daemon) Kernel() *kernel.Kernel {
	return s.k
}

// Machine returns the simulated machine
func (s *Daemon) Machine() *hw.Machine {
	return s.machine
}

// tick runs one timer interrupt
func (s *Daemon) tick() {
	s.machine.Tick(s.k.Interrupt)
	s.k.AccountSystem(PID)
}

// discipline compares the kernel clock with the host clock once and corrects it
func (s *Daemon) discipline() error {
	host := clock.FromTime(s.hostNow())
	offset := host.Sub(s.k.GetTime())
	s.stats.SetCounter("offset_us", offset)

	if time.Duration(abs(offset))*time.Microsecond >= s.cfg.StepThreshold {
		log.Warningf("offset %dus is above step threshold %v, stepping", offset, s.cfg.StepThreshold)
		if err := s.k.SetTime(kernel.Root, host); err != nil {
			s.stats.UpdateCounterBy("step_error", 1)
			return fmt.Errorf("stepping clock: %w", err)
		}
		s.state.reset()
		s.stats.UpdateCounterBy("steps", 1)
		return nil
	}

	// the slew will change the frequency, record what it was for this offset
	cur, err := s.k.AdjustClock(kernel.Root, servo.Timex{})
	if err != nil {
		return err
	}
	s.state.pushSample(&sample{OffsetUS: float64(offset), FreqPPM: cur.Freq.PPM()})
	maxErr, estErr := s.errorBounds(offset)

	res, err := s.k.AdjustClock(kernel.Root, servo.Timex{
		Modes:    clock.AdjOffset | clock.AdjMaxError | clock.AdjEstError | clock.AdjTimeConst,
		Offset:   offset,
		MaxError: maxErr,
		EstError: estErr,
		Constant: s.cfg.TimeConstant,
	})
	if err != nil {
		s.stats.UpdateCounterBy("adjust_error", 1)
		return fmt.Errorf("adjusting clock: %w", err)
	}
	s.stats.SetCounter("freq_ppb", int64(clock.ScaledPPMToPPB(int64(res.Freq))))
	s.stats.SetCounter("max_error_us", res.MaxError)
	s.stats.SetCounter("est_error_us", res.EstError)
	s.stats.SetCounter("status", int64(res.Status))
	log.Debugf("offset %dus, freq %.3fppm, max error %dus, status %s", offset, res.Freq.PPM(), res.MaxError, res.Status)
	return nil
}

// errorBounds evaluates configured expressions over the history.
// Falls back to the current offset when the history can't support them.
func (s *Daemon) errorBounds(offset int64) (maxError, estError int64) {
	lastN := s.state.takeSamples(s.cfg.RingSize)
	maxF, estF, err := s.cfg.Math.Errors(lastN)
	if err != nil {
		s.stats.UpdateCounterBy("math_error", 1)
		log.Warningf("calculating errors: %v", err)
		return abs(offset), abs(offset)
	}
	maxError = int64(math.Ceil(maxF))
	estError = int64(math.Ceil(estF))
	if maxError < abs(offset) {
		maxError = abs(offset)
	}
	if maxError >= clock.ErrorSentinel {
		maxError = clock.ErrorSentinel - 1
	}
	if estError < 0 {
		estError = 0
	}
	if estError > maxError {
		estError = maxError
	}

	params := prepareMathParameters(lastN)
	logSample := &LogSample{
		OffsetUS:       params["offset"][0],
		OffsetMeanUS:   mean(params["offset"]),
		OffsetStddevUS: stddev(params["offset"]),
		FreqPPM:        params["freq"][0],
		FreqMeanPPM:    mean(params["freq"]),
		FreqStddevPPM:  stddev(params["freq"]),
		MaxErrorUS:     float64(maxError),
		EstErrorUS:     float64(estError),
		Status:         s.k.Status().String(),
	}
	if err := s.l.Log(logSample); err != nil {
		log.Errorf("failed to log sample: %v", err)
	}
	return maxError, estError
}

// collectStats publishes kernel counters and our own process stats
func (s *Daemon) collectStats() {
	c := s.k.Counters()
	counters := map[string]int64{
		"kernel.ticks":             int64(c.Ticks),
		"kernel.signals":           int64(c.Signals),
		"kernel.leap_seconds":      int64(c.LeapSeconds),
		"kernel.steps":             int64(c.Steps),
		"kernel.adjustments":       int64(c.Adjustments),
		"kernel.rtc_syncs":         int64(c.RTCSyncs),
		"kernel.rtc_sync_errors":   int64(c.RTCSyncErrors),
		"kernel.processes":         int64(c.Processes),
		"kernel.armed_timers":      int64(c.ArmedTimers),
		"kernel.pending_adjust_us": c.PendingAdjust,
		"kernel.masked_sections":   int64(c.MaskedSections),
		"kernel.time":              s.k.Time(),
		"alarms_dropped":           s.alarms.dropped.Load(),
	}

	sys, err := s.sys.CollectRuntimeStats(s.cfg.StatsInterval)
	if err != nil {
		log.Warningf("collecting runtime stats: %v", err)
	}
	for k, v := range sys {
		counters[k] = int64(v)
	}
	s.stats.SetCounters(counters)
}

// armStats arms the kernel interval timer that drives stats collection
func (s *Daemon) armStats() error {
	tv := clock.Timeval{}.Add(s.cfg.StatsInterval.Microseconds())
	_, err := s.k.SetInterval(PID, int(itimer.Real), itimer.Value{Value: tv, Interval: tv})
	return err
}

func (s *Daemon) runTicks(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.k.HZ()))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Daemon) runDiscipline(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.DisciplineInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.discipline(); err != nil {
				log.Errorf("discipline: %v", err)
			}
		}
	}
}

func (s *Daemon) runStats(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-s.alarms.c:
			log.Debugf("got %v, collecting stats", sig)
			s.collectStats()
		}
	}
}

// Run a daemon until ctx is cancelled
func (s *Daemon) Run(ctx context.Context) error {
	if err := s.armStats(); err != nil {
		return fmt.Errorf("arming stats timer: %w", err)
	}
	defer s.k.ProcessExited(PID)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.runTicks(ctx) })
	eg.Go(func() error { return s.runDiscipline(ctx) })
	eg.Go(func() error { return s.runStats(ctx) })
	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
