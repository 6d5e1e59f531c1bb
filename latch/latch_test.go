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

package latch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/softclock/hw"
)

func TestOffset(t *testing.T) {
	tests := []struct {
		name    string
		count   uint16
		pending bool
		want    int64
	}{
		{name: "just reloaded", count: 11931, want: 0},
		{name: "half way", count: 5966, want: 4999},
		{name: "about to wrap", count: 0, want: 9999},
		{name: "wrapped, irq not serviced", count: 11900, pending: true, want: 10026},
		{name: "near reload, irq serviced", count: 11900, want: 26},
		{name: "pending ignored far from reload", count: 5966, pending: true, want: 4999},
		{name: "late tick held at zero", count: 0, pending: true, want: 9999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := hw.NewMachine(100)
			m.PIT.SetCount(tt.count)
			if tt.pending {
				m.PIC.Raise(hw.IRQTimer)
			}
			r := New(m, 100, hw.ClockTickRate)
			require.Equal(t, int64(11932), r.Latch())
			require.Equal(t, tt.want, r.Offset(10000))
		})
	}
}

func TestOffsetMissingPIT(t *testing.T) {
	r := New(&hw.Machine{}, 100, hw.ClockTickRate)
	// floating bus reads 0xffff and a pending IRQ0
	require.Equal(t, int64(10000), r.Offset(10000))
}

func TestOffsetBounded(t *testing.T) {
	m := hw.NewMachine(100)
	r := New(m, 100, hw.ClockTickRate)
	for c := 0; c < 11932; c += 97 {
		m.PIT.SetCount(uint16(c))
		off := r.Offset(10000)
		require.GreaterOrEqual(t, off, int64(0))
		require.Less(t, off, int64(10000))
	}
}
