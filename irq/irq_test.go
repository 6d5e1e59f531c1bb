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

package irq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskExcludes(t *testing.T) {
	m := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Do(func() {
					counter++
				})
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 8000, counter)
	require.Equal(t, uint64(8000), m.Sections())
}

func TestDisableRestore(t *testing.T) {
	m := New()
	state := m.Disable()
	require.Equal(t, State(1), state)
	m.Restore(state)
	state = m.Disable()
	require.Equal(t, State(2), state)
	m.Restore(state)
}
