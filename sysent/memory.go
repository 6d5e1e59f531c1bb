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

package sysent

import (
	"fmt"
	"sync"

	"github.com/facebook/softclock/clock"
)

// UserMemory is the address space of the calling process.
// Every failure wraps clock.ErrAccessDenied.
type UserMemory interface {
	VerifyRead(addr uintptr, size int) error
	VerifyWrite(addr uintptr, size int) error
	CopyIn(addr uintptr, dst []byte) error
	CopyOut(addr uintptr, src []byte) error
}

type span struct {
	addr uintptr
	size int
}

// Arena is a flat user address space starting at base, with optional read-only ranges
type Arena struct {
	sync.Mutex
	base     uintptr
	mem      []byte
	readOnly []span
}

// NewArena returns size zeroed bytes mapped at base
func NewArena(base uintptr, size int) *Arena {
	return &Arena{base: base, mem: make([]byte, size)}
}

// Base returns the lowest valid address
func (a *Arena) Base() uintptr {
	return a.base
}

// Protect makes size bytes at addr read-only
func (a *Arena) Protect(addr uintptr, size int) {
	a.Lock()
	defer a.Unlock()
	a.readOnly = append(a.readOnly, span{addr: addr, size: size})
}

func (a *Arena) inRange(addr uintptr, size int) bool {
	if size < 0 || addr < a.base {
		return false
	}
	off := addr - a.base
	return off <= uintptr(len(a.mem)) && uintptr(size) <= uintptr(len(a.mem))-off
}

func (a *Arena) writable(addr uintptr, size int) bool {
	for _, s := range a.readOnly {
		if addr < s.addr+uintptr(s.size) && s.addr < addr+uintptr(size) {
			return false
		}
	}
	return true
}

// VerifyRead checks size bytes at addr can be read
func (a *Arena) VerifyRead(addr uintptr, size int) error {
	a.Lock()
	defer a.Unlock()
	if !a.inRange(addr, size) {
		return fmt.Errorf("%w: read of %d bytes at %#x", clock.ErrAccessDenied, size, addr)
	}
	return nil
}

// VerifyWrite checks size bytes at addr can be written
func (a *Arena) VerifyWrite(addr uintptr, size int) error {
	a.Lock()
	defer a.Unlock()
	if !a.inRange(addr, size) || !a.writable(addr, size) {
		return fmt.Errorf("%w: write of %d bytes at %#x", clock.ErrAccessDenied, size, addr)
	}
	return nil
}

// CopyIn reads len(dst) bytes at addr
func (a *Arena) CopyIn(addr uintptr, dst []byte) error {
	if err := a.VerifyRead(addr, len(dst)); err != nil {
		return err
	}
	a.Lock()
	defer a.Unlock()
	copy(dst, a.mem[addr-a.base:])
	return nil
}

// CopyOut writes src at addr
func (a *Arena) CopyOut(addr uintptr, src []byte) error {
	if err := a.VerifyWrite(addr, len(src)); err != nil {
		return err
	}
	a.Lock()
	defer a.Unlock()
	copy(a.mem[addr-a.base:], src)
	return nil
}
