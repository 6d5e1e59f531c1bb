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

import "sync"

// PIT is channel 0 of a simulated 8253 counting down from its reload value
type PIT struct {
	sync.Mutex
	reload     uint16
	count      uint16
	source     func() uint16
	latched    uint16
	latchValid bool
	highNext   bool
}

// NewPIT returns a PIT reloading from reload, stopped right after a reload
func NewPIT(reload uint16) *PIT {
	return &PIT{reload: reload, count: reload - 1}
}

// Reload returns the reload value
func (p *PIT) Reload() uint16 {
	return p.reload
}

// SetCount freezes the counter at count
func (p *PIT) SetCount(count uint16) {
	p.Lock()
	defer p.Unlock()
	p.source = nil
	p.count = count
}

// SetSource makes the counter follow f
func (p *PIT) SetSource(f func() uint16) {
	p.Lock()
	defer p.Unlock()
	p.source = f
}

func (p *PIT) current() uint16 {
	if p.source != nil {
		return p.source()
	}
	return p.count
}

func (p *PIT) command(val uint8) {
	p.Lock()
	defer p.Unlock()
	// bits 7-6 select the channel, bits 5-4 equal to zero mean counter latch
	if val&0xf0 == PITLatchChannel0 {
		p.latched = p.current()
		p.latchValid = true
		p.highNext = false
	}
}

func (p *PIT) read() uint8 {
	p.Lock()
	defer p.Unlock()
	v := p.latched
	if !p.latchValid {
		v = p.current()
	}
	if !p.highNext {
		p.highNext = true
		return uint8(v)
	}
	p.highNext = false
	p.latchValid = false
	return uint8(v >> 8)
}
