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

package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/facebook/softclock/clock"
	"github.com/facebook/softclock/hostendian"
	"github.com/facebook/softclock/hw"
	"github.com/facebook/softclock/itimer"
	"github.com/facebook/softclock/kernel"
	"github.com/facebook/softclock/servo"
	"github.com/facebook/softclock/sysent"
)

// flags
var (
	simStartFlag    string
	simHZFlag       int
	simTicksFlag    int
	simTimerFlag    time.Duration
	simIntervalFlag time.Duration
	simOffsetFlag   int64
	simFreqFlag     float64
	simLeapFlag     string
	simDumpFlag     bool
)

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVarP(&simStartFlag, "start", "s", "", "RFC3339 time the CMOS starts at. Empty means now")
	simulateCmd.Flags().IntVar(&simHZFlag, "hz", servo.DefaultConfig().HZ, "timer interrupt frequency")
	simulateCmd.Flags().IntVarP(&simTicksFlag, "ticks", "n", 1000, "number of timer interrupts to run")
	simulateCmd.Flags().DurationVarP(&simTimerFlag, "timer", "t", 0, "arm a real interval timer firing after this long. 0 means none")
	simulateCmd.Flags().DurationVar(&simIntervalFlag, "interval", 0, "reload value of the real interval timer")
	simulateCmd.Flags().Int64Var(&simOffsetFlag, "offset", 0, "phase offset in us to hand to adjtimex")
	simulateCmd.Flags().Float64Var(&simFreqFlag, "freq", 0, "frequency offset in ppm to hand to adjtimex")
	simulateCmd.Flags().StringVar(&simLeapFlag, "leap", "", "schedule a leap second, either 'insert' or 'delete'")
	simulateCmd.Flags().BoolVarP(&simDumpFlag, "dump", "d", false, "dump the final kernel state")
}

// simulated process issuing system calls
const simPID itimer.PID = 100

// scratch addresses in the simulated process memory
const (
	simBase   uintptr = 0x10000
	simTVAddr         = simBase
	simTZAddr         = simBase + 0x100
	simITAddr         = simBase + 0x200
	simTXAddr         = simBase + 0x300
)

type simConfig struct {
	start    time.Time
	hz       int
	ticks    int
	timer    time.Duration
	interval time.Duration
	offset   int64
	freqPPM  float64
	leap     servo.Status
}

type simSignal struct {
	Tick   int
	PID    itimer.PID
	Signal unix.Signal
}

type simResult struct {
	Boot     clock.Timeval
	Time     clock.Timeval
	Timex    sysent.Timex
	Signals  []simSignal
	Counters kernel.Counters
}

// signalRecorder remembers deliveries along with the tick they happened on
type signalRecorder struct {
	tick    int
	signals []simSignal
}

func (r *signalRecorder) Deliver(pid itimer.PID, sig unix.Signal) {
	r.signals = append(r.signals, simSignal{Tick: r.tick, PID: pid, Signal: sig})
}

func sysCall(tbl *sysent.Table, p sysent.Process, nr int, args ...uintptr) error {
	if r := tbl.Call(p, nr, args...); r < 0 {
		return fmt.Errorf("system call %d: %w", nr, unix.Errno(-r))
	}
	return nil
}

func poke(mem *sysent.Arena, addr uintptr, v any) error {
	b, err := hostendian.Marshal(v)
	if err != nil {
		return err
	}
	return mem.CopyOut(addr, b)
}

func peek(mem *sysent.Arena, addr uintptr, v any) error {
	b := make([]byte, hostendian.Size(v))
	if err := mem.CopyIn(addr, b); err != nil {
		return err
	}
	return hostendian.Unmarshal(b, v)
}

// simulate boots a kernel on a machine whose clock only advances with the ticks we run
func simulate(c simConfig) (*simResult, error) {
	cfg := kernel.DefaultConfig()
	cfg.Clock.HZ = c.hz
	if err := cfg.Clock.Validate(); err != nil {
		return nil, err
	}
	if c.offset < math.MinInt32 || c.offset > math.MaxInt32 {
		return nil, fmt.Errorf("%w: offset %dus does not fit adjtimex", clock.ErrInvalidArgument, c.offset)
	}
	freq := math.Round(c.freqPPM * 65536)
	if math.IsNaN(freq) || freq < math.MinInt32 || freq > math.MaxInt32 {
		return nil, fmt.Errorf("%w: frequency %vppm does not fit adjtimex", clock.ErrInvalidArgument, c.freqPPM)
	}
	machine := hw.NewMachine(c.hz)
	machine.CMOS.Load(c.start.UTC())

	rec := &signalRecorder{}
	k, err := kernel.New(cfg, machine, rec)
	if err != nil {
		return nil, err
	}
	if err := k.Boot(); err != nil {
		return nil, fmt.Errorf("booting: %w", err)
	}
	res := &simResult{Boot: k.GetTime()}

	tbl := sysent.New(k)
	mem := sysent.NewArena(simBase, 0x1000)
	p := sysent.Process{PID: simPID, Cred: kernel.Root, Mem: mem}
	k.ProcessCreated(simPID)
	defer k.ProcessExited(simPID)

	var modes uint32
	tx := sysent.Timex{}
	if c.offset != 0 {
		modes |= clock.AdjOffset
		tx.Offset = int32(c.offset)
	}
	if c.freqPPM != 0 {
		modes |= clock.AdjFrequency
		tx.Frequency = int32(freq)
	}
	if c.leap != servo.StatusOK {
		modes |= clock.AdjStatus
		tx.Status = int32(c.leap)
	}
	if modes != 0 {
		tx.Mode = modes
		if err := poke(mem, simTXAddr, &tx); err != nil {
			return nil, err
		}
		if err := sysCall(tbl, p, sysent.SysAdjtimex, simTXAddr); err != nil {
			return nil, err
		}
	}

	if c.timer > 0 {
		it := sysent.FromValue(itimer.Value{
			Value:    clock.Timeval{}.Add(c.timer.Microseconds()),
			Interval: clock.Timeval{}.Add(c.interval.Microseconds()),
		})
		if err := poke(mem, simITAddr, &it); err != nil {
			return nil, err
		}
		if err := sysCall(tbl, p, sysent.SysSetitimer, uintptr(itimer.Real), simITAddr, 0); err != nil {
			return nil, err
		}
	}

	for i := 1; i <= c.ticks; i++ {
		rec.tick = i
		machine.Tick(k.Interrupt)
		k.AccountUser(simPID)
	}

	if err := sysCall(tbl, p, sysent.SysGettimeofday, simTVAddr, simTZAddr); err != nil {
		return nil, err
	}
	var tv sysent.Timeval
	if err := peek(mem, simTVAddr, &tv); err != nil {
		return nil, err
	}
	res.Time = tv.ToClock()

	if err := poke(mem, simTXAddr, &sysent.Timex{}); err != nil {
		return nil, err
	}
	if err := sysCall(tbl, p, sysent.SysAdjtimex, simTXAddr); err != nil {
		return nil, err
	}
	if err := peek(mem, simTXAddr, &res.Timex); err != nil {
		return nil, err
	}
	res.Signals = rec.signals
	res.Counters = k.Counters()
	return res, nil
}

func printSimResult(w io.Writer, res *simResult, dump bool) {
	fmt.Fprintf(w, "booted at:   %s (%s)\n", res.Boot, res.Boot.Time().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "ended at:    %s (%s)\n", res.Time, res.Time.Time().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "status:      %s\n", servo.Status(res.Timex.Status))
	fmt.Fprintf(w, "frequency:   %.3fppm\n", servo.ScaledPPM(res.Timex.Frequency).PPM())
	fmt.Fprintf(w, "max error:   %dus\n", res.Timex.MaxError)
	fmt.Fprintf(w, "signals:     %d\n", len(res.Signals))
	for _, s := range res.Signals {
		fmt.Fprintf(w, "\ttick %d: %v to %d\n", s.Tick, s.Signal, s.PID)
	}
	if dump {
		spew.Fdump(w, res.Counters, res.Timex)
	}
}

func parseLeap(s string) (servo.Status, error) {
	switch s {
	case "":
		return servo.StatusOK, nil
	case "insert":
		return servo.StatusInsert, nil
	case "delete":
		return servo.StatusDelete, nil
	}
	return 0, fmt.Errorf("unknown leap %q", s)
}

func simulateRun() error {
	start := time.Now()
	if simStartFlag != "" {
		var err error
		start, err = time.Parse(time.RFC3339, simStartFlag)
		if err != nil {
			return fmt.Errorf("parsing start time: %w", err)
		}
	}
	leap, err := parseLeap(simLeapFlag)
	if err != nil {
		return err
	}
	c := simConfig{
		start:    start,
		hz:       simHZFlag,
		ticks:    simTicksFlag,
		timer:    simTimerFlag,
		interval: simIntervalFlag,
		offset:   simOffsetFlag,
		freqPPM:  simFreqFlag,
		leap:     leap,
	}
	log.Debugf("simulating %+v", c)
	res, err := simulate(c)
	if err != nil {
		return err
	}
	printSimResult(os.Stdout, res, simDumpFlag)
	return nil
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Boot the clock core on a simulated machine and run it for a number of ticks",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := simulateRun(); err != nil {
			log.Fatal(err)
		}
	},
}
