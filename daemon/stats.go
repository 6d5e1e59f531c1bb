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
	"maps"
	"sync"
)

// StatsServer receives the counters published by the daemon
type StatsServer interface {
	SetCounter(key string, val int64)
	// SetCounters publishes a group of counters as one update
	SetCounters(counters map[string]int64)
	UpdateCounterBy(key string, count int64)
}

// Stats keeps counters in memory for the JSON and prometheus exporters
type Stats struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewStats returns empty Stats
func NewStats() *Stats {
	return &Stats{
		counters: map[string]int64{},
	}
}

// UpdateCounterBy adds count to key
func (s *Stats) UpdateCounterBy(key string, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] += count
}

// SetCounter sets key to val
func (s *Stats) SetCounter(key string, val int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] = val
}

// SetCounters sets every key in counters, readers never see part of the group
func (s *Stats) SetCounters(counters map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.counters, counters)
}

// Get returns a copy of all counters
func (s *Stats) Get() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.counters)
}
