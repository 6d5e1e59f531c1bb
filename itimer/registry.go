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
Package itimer keeps the three interval timers of every process.

Real timers hold an absolute tick deadline and are indexed by deadline, so the tick path
only looks at the earliest one. Virtual and Prof timers hold a countdown decremented by
scheduler accounting. Signals are handed to a callback and never delivered inline.

A Registry is not safe for concurrent use; the owner serializes access under the
interrupt mask.
*/
package itimer

import (
	"errors"
	"fmt"

	"github.com/google/btree"
)

// ErrNoProcess means the pid has no timers attached
var ErrNoProcess = errors.New("no such process")

const defaultDegree = 8

// PID identifies a process
type PID int32

// FireFunc is called for every expiry
type FireFunc func(pid PID, kind Kind)

type timer struct {
	// value is a deadline tick for Real and remaining ticks plus one otherwise, 0 when disarmed
	value uint64
	incr  uint64
}

// Set is the timer state of one process
type Set struct {
	timers [3]timer
}

type deadline struct {
	tick uint64
	pid  PID
}

func lessDeadline(a, b deadline) bool {
	if a.tick != b.tick {
		return a.tick < b.tick
	}
	return a.pid < b.pid
}

// Registry holds the timers of all processes
type Registry struct {
	conv      Converter
	procs     map[PID]*Set
	deadlines *btree.BTreeG[deadline]
}

// NewRegistry returns an empty registry for hz ticks per second
func NewRegistry(hz int) *Registry {
	return &Registry{
		conv:      NewConverter(hz),
		procs:     make(map[PID]*Set),
		deadlines: btree.NewG(defaultDegree, lessDeadline),
	}
}

// Attach gives pid a set of disarmed timers. Attaching twice keeps the existing set.
func (r *Registry) Attach(pid PID) {
	if _, ok := r.procs[pid]; !ok {
		r.procs[pid] = &Set{}
	}
}

// Detach drops all timers of pid
func (r *Registry) Detach(pid PID) {
	s, ok := r.procs[pid]
	if !ok {
		return
	}
	if t := s.timers[Real]; t.value != 0 {
		r.deadlines.Delete(deadline{tick: t.value, pid: pid})
	}
	delete(r.procs, pid)
}

// Len returns the number of attached processes
func (r *Registry) Len() int {
	return len(r.procs)
}

// Armed returns the number of armed Real timers
func (r *Registry) Armed() int {
	return r.deadlines.Len()
}

// NextDeadline returns the earliest Real timer deadline
func (r *Registry) NextDeadline() (uint64, bool) {
	d, ok := r.deadlines.Min()
	return d.tick, ok
}

func (r *Registry) lookup(pid PID) (*Set, error) {
	s, ok := r.procs[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoProcess, pid)
	}
	return s, nil
}

// Get returns the remaining time and interval of a timer at tick now
func (r *Registry) Get(pid PID, kind Kind, now uint64) (Value, error) {
	s, err := r.lookup(pid)
	if err != nil {
		return Value{}, err
	}
	return r.get(s, kind, now), nil
}

func (r *Registry) get(s *Set, kind Kind, now uint64) Value {
	t := s.timers[kind]
	remaining := t.value
	if kind == Real {
		remaining = 0
		if t.value > now {
			remaining = t.value - now
		}
	}
	return Value{
		Value:    r.conv.FromTicks(remaining),
		Interval: r.conv.FromTicks(t.incr),
	}
}

// Set arms or disarms a timer at tick now and returns its previous value.
// v must have been validated.
func (r *Registry) Set(pid PID, kind Kind, v Value, now uint64) (Value, error) {
	s, err := r.lookup(pid)
	if err != nil {
		return Value{}, err
	}
	if err := r.conv.Check(v, now); err != nil {
		return Value{}, err
	}
	prev := r.get(s, kind, now)
	ticks := r.conv.ToTicks(v.Value)
	incr := r.conv.ToTicks(v.Interval)
	t := &s.timers[kind]
	if kind == Real {
		if t.value != 0 {
			r.deadlines.Delete(deadline{tick: t.value, pid: pid})
		}
		if ticks != 0 {
			ticks += 1 + now
			r.deadlines.ReplaceOrInsert(deadline{tick: ticks, pid: pid})
		}
	} else if ticks != 0 {
		ticks++
	}
	t.value = ticks
	t.incr = incr
	return prev, nil
}

// Tick fires every Real timer whose deadline is at or before now, reloading periodic ones
func (r *Registry) Tick(now uint64, fire FireFunc) {
	for {
		d, ok := r.deadlines.Min()
		if !ok || d.tick > now {
			return
		}
		r.deadlines.DeleteMin()
		s, ok := r.procs[d.pid]
		if !ok {
			continue
		}
		t := &s.timers[Real]
		fire(d.pid, Real)
		if t.incr == 0 {
			t.value = 0
			continue
		}
		for t.value <= now {
			t.value += t.incr
		}
		r.deadlines.ReplaceOrInsert(deadline{tick: t.value, pid: d.pid})
	}
}

// AccountUser charges one tick of user time to pid
func (r *Registry) AccountUser(pid PID, fire FireFunc) {
	s, ok := r.procs[pid]
	if !ok {
		return
	}
	countdown(s, pid, Virtual, fire)
	countdown(s, pid, Prof, fire)
}

// AccountSystem charges one tick of system time to pid
func (r *Registry) AccountSystem(pid PID, fire FireFunc) {
	s, ok := r.procs[pid]
	if !ok {
		return
	}
	countdown(s, pid, Prof, fire)
}

func countdown(s *Set, pid PID, kind Kind, fire FireFunc) {
	t := &s.timers[kind]
	if t.value == 0 {
		return
	}
	t.value--
	if t.value == 0 {
		t.value = t.incr
		fire(pid, kind)
	}
}
