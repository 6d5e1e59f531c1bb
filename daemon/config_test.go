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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, DefaultConfig().EvalAndValidate())
}

func TestEvalAndValidate(t *testing.T) {
	c := DefaultConfig()
	c.DisciplineInterval = 0
	require.Equal(t, fmt.Errorf("bad config: 'discipline_interval' must be within (0, 1m]"), c.EvalAndValidate())

	c.DisciplineInterval = time.Second
	c.StatsInterval = time.Millisecond
	require.Equal(t, fmt.Errorf("bad config: 'stats_interval' must be at least a second"), c.EvalAndValidate())

	c.StatsInterval = time.Second
	c.StepThreshold = time.Second
	require.Equal(t, fmt.Errorf("bad config: 'step_threshold' must be within (0, 131.072ms]"), c.EvalAndValidate())

	c.StepThreshold = time.Millisecond
	c.TimeConstant = 7
	require.Equal(t, fmt.Errorf("bad config: 'time_constant' must be within [0, 6]"), c.EvalAndValidate())

	c.TimeConstant = 0
	c.RingSize = 0
	require.Equal(t, fmt.Errorf("bad config: 'ring_size' must be >0"), c.EvalAndValidate())

	c.RingSize = 10
	c.PromPort = c.MonitoringPort
	require.Equal(t, fmt.Errorf("bad config: 'prom_port' must be unset or differ from 'monitoring_port'"), c.EvalAndValidate())

	c.PromPort = 0
	c.Math.MaxError = "mean(delay, 10)"
	require.Error(t, c.EvalAndValidate())

	c.Math.MaxError = "1"
	require.NoError(t, c.EvalAndValidate())
}

func TestEvalAndValidateKernel(t *testing.T) {
	c := DefaultConfig()
	c.Kernel.Clock.HZ = 7
	require.Error(t, c.EvalAndValidate())

	c = DefaultConfig()
	c.Kernel.RTC.PollLimit = 0
	require.Equal(t, fmt.Errorf("bad config: 'poll_limit' must be >0"), c.EvalAndValidate())
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "softclockd.yaml")
	data := `
kernel:
  clock:
    hz: 250
  rtc_sync: true
discipline_interval: 2s
ring_size: 30
math:
  max_error: "abs(mean(offset, 30))"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 250, c.Kernel.Clock.HZ)
	require.True(t, c.Kernel.RTCSync)
	require.Equal(t, 2*time.Second, c.DisciplineInterval)
	require.Equal(t, 30, c.RingSize)
	require.Equal(t, "abs(mean(offset, 30))", c.Math.MaxError)
	// untouched values keep their defaults
	require.Equal(t, MathDefaultEstError, c.Math.EstError)
	require.Equal(t, 1193180, c.Kernel.Clock.ClockTickRate)
	require.NoError(t, c.EvalAndValidate())
}

func TestReadConfigStrict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "softclockd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_option: 1\n"), 0o644))
	_, err := ReadConfig(path)
	require.Error(t, err)

	_, err = ReadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigHash(t *testing.T) {
	a, err := DefaultConfig().Hash()
	require.NoError(t, err)
	b, err := DefaultConfig().Hash()
	require.NoError(t, err)
	require.Equal(t, a, b)

	c := DefaultConfig()
	c.Kernel.RTCSync = !c.Kernel.RTCSync
	h, err := c.Hash()
	require.NoError(t, err)
	require.NotEqual(t, a, h)
}
