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
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	s := NewStats()
	s.SetCounter("offset_us", 42)
	s.UpdateCounterBy("steps", 1)
	s.UpdateCounterBy("steps", 2)
	require.Equal(t, map[string]int64{"offset_us": 42, "steps": 3}, s.Get())

	s.SetCounters(map[string]int64{"offset_us": -7, "kernel.ticks": 100})
	require.Equal(t, map[string]int64{"offset_us": -7, "steps": 3, "kernel.ticks": 100}, s.Get())

	// callers cannot mutate the stored counters through Get
	got := s.Get()
	got["steps"] = 0
	require.Equal(t, int64(3), s.Get()["steps"])
}

func TestJSONStatsFetchCounters(t *testing.T) {
	s := NewJSONStats()
	s.SetCounter("kernel.ticks", 100)
	s.SetCounter("offset_us", -7)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	got, err := FetchCounters(srv.URL)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"kernel.ticks": 100, "offset_us": -7}, got)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestFetchCountersBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := FetchCounters(srv.URL)
	require.Error(t, err)
}

func TestPrometheusExporter(t *testing.T) {
	s := NewStats()
	s.SetCounter("kernel.rtc_syncs", 3)
	s.SetCounter("max_error_us", 1500)
	e := NewPrometheusExporter(s, 0, 0)
	e.scrapeMetrics()
	// second scrape reuses registered gauges
	s.SetCounter("kernel.rtc_syncs", 4)
	e.scrapeMetrics()

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "kernel_rtc_syncs 4"), string(body))
	require.True(t, strings.Contains(string(body), "max_error_us 1500"), string(body))
}

func TestFlattenKey(t *testing.T) {
	require.Equal(t, "runtime_mem_gc_count", flattenKey("runtime.mem.gc.count"))
	require.Equal(t, "a_b_c_d_e", flattenKey("a b-c=d/e"))
}

func TestCollectRuntimeStats(t *testing.T) {
	s := &SysStats{}
	first, err := s.CollectRuntimeStats(0)
	require.NoError(t, err)
	require.Contains(t, first, "runtime.cpu.goroutines")
	require.Contains(t, first, "process.uptime")
}

func TestPrometheusExporterStopsOnCancel(t *testing.T) {
	s := NewStats()
	s.SetCounter("kernel.ticks", 1)
	e := NewPrometheusExporter(s, 0, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("exporter kept running after cancel")
	}
}
