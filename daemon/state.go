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
	"container/ring"
	"sync"
)

// sample is a single comparison of the kernel clock against the host clock
type sample struct {
	OffsetUS float64 // host minus kernel
	FreqPPM  float64 // kernel frequency correction after the adjustment
}

// state of the daemon, guarded by mutex
type daemonState struct {
	sync.Mutex

	samples *ring.Ring

	lastOffsetUS int64
	stepped      bool
}

func newDaemonState(ringSize int) *daemonState {
	s := &daemonState{
		samples: ring.New(ringSize),
	}
	// init ring buffer with nils
	for i := 0; i < ringSize; i++ {
		s.samples.Value = nil
		s.samples = s.samples.Next()
	}
	return s
}

func (s *daemonState) pushSample(data *sample) {
	s.Lock()
	defer s.Unlock()
	s.samples.Value = data
	s.samples = s.samples.Next()
	s.lastOffsetUS = int64(data.OffsetUS)
}

// takeSamples returns up to n newest samples, newest first
func (s *daemonState) takeSamples(n int) []*sample {
	s.Lock()
	defer s.Unlock()
	result := []*sample{}
	r := s.samples.Prev()
	for j := 0; j < n; j++ {
		if r.Value == nil {
			break
		}
		result = append(result, r.Value.(*sample))
		r = r.Prev()
	}
	return result
}

// reset forgets history, which no longer describes the clock after a step
func (s *daemonState) reset() {
	s.Lock()
	defer s.Unlock()
	for i := 0; i < s.samples.Len(); i++ {
		s.samples.Value = nil
		s.samples = s.samples.Next()
	}
	s.stepped = true
}
