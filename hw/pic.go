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

// PIC is a simulated master 8259, only the register read back is modelled
type PIC struct {
	sync.Mutex
	irr     uint8
	isr     uint8
	readISR bool
}

// Raise marks irq as requested
func (p *PIC) Raise(irq int) {
	p.Lock()
	p.irr |= 1 << irq
	p.Unlock()
}

// Ack moves irq from requested to serviced
func (p *PIC) Ack(irq int) {
	p.Lock()
	p.irr &^= 1 << irq
	p.isr &^= 1 << irq
	p.Unlock()
}

// Pending tells if irq is requested but not yet acknowledged
func (p *PIC) Pending(irq int) bool {
	p.Lock()
	defer p.Unlock()
	return p.irr&(1<<irq) != 0
}

func (p *PIC) command(val uint8) {
	p.Lock()
	defer p.Unlock()
	switch val {
	case PICReadIRR:
		p.readISR = false
	case PICReadISR:
		p.readISR = true
	}
}

func (p *PIC) read() uint8 {
	p.Lock()
	defer p.Unlock()
	if p.readISR {
		return p.isr
	}
	return p.irr
}
