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

// Package irq models the interrupt mask that guards state shared between the
// timer interrupt path and system call context.
//
// Disable/Restore do not nest: a path that already holds the mask must call the
// unlocked variants of whatever it needs.
package irq

import "sync/atomic"

// State is the interrupt state returned by Disable and consumed by Restore
type State uint64

// Mask is the process-wide interrupt mask
type Mask struct {
	mu       mutex
	sections atomic.Uint64
}

// New returns an unmasked Mask
func New() *Mask {
	return &Mask{}
}

// Disable masks interrupts and returns the previous state
func (m *Mask) Disable() State {
	m.mu.Lock()
	return State(m.sections.Add(1))
}

// Restore restores the interrupt state returned by Disable
func (m *Mask) Restore(_ State) {
	m.mu.Unlock()
}

// Do runs f with interrupts masked
func (m *Mask) Do(f func()) {
	state := m.Disable()
	defer m.Restore(state)
	f()
}

// Sections returns how many masked sections were entered so far
func (m *Mask) Sections() uint64 {
	return m.sections.Load()
}
