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
	"time"

	"github.com/cespare/xxhash"
	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/softclock/kernel"
	"github.com/facebook/softclock/servo"
)

// Config represents configuration we expect to read from file
type Config struct {
	Kernel             kernel.Config `yaml:"kernel"`
	DisciplineInterval time.Duration `yaml:"discipline_interval"` // how often the kernel clock is compared with the host clock
	StatsInterval      time.Duration `yaml:"stats_interval"`      // period of the kernel timer driving stats collection
	StepThreshold      time.Duration `yaml:"step_threshold"`      // offsets at or above this are stepped instead of slewed
	TimeConstant       int64         `yaml:"time_constant"`       // pll time constant set with every offset
	RingSize           int           `yaml:"ring_size"`           // must be at least the size of N samples we use in expressions
	Math               Math          `yaml:"math"`
	MonitoringPort     int           `yaml:"monitoring_port"`
	PromPort           int           `yaml:"prom_port"` // 0 disables the prometheus exporter
}

// DefaultConfig returns the configuration softclockd runs with when no file is given
func DefaultConfig() *Config {
	return &Config{
		Kernel:             kernel.DefaultConfig(),
		DisciplineInterval: time.Second,
		StatsInterval:      10 * time.Second,
		StepThreshold:      100 * time.Millisecond,
		TimeConstant:       2,
		RingSize:           MathDefaultHistory,
		Math: Math{
			MaxError: MathDefaultMaxError,
			EstError: MathDefaultEstError,
		},
		MonitoringPort: 21040,
	}
}

// EvalAndValidate makes sure config is valid and evaluates expressions for further use.
func (c *Config) EvalAndValidate() error {
	if err := c.Kernel.Clock.Validate(); err != nil {
		return fmt.Errorf("bad config: %w", err)
	}
	if c.Kernel.RTC.PollLimit <= 0 {
		return fmt.Errorf("bad config: 'poll_limit' must be >0")
	}
	if c.DisciplineInterval <= 0 || c.DisciplineInterval > time.Minute {
		return fmt.Errorf("bad config: 'discipline_interval' must be within (0, 1m]")
	}
	if c.StatsInterval < time.Second {
		return fmt.Errorf("bad config: 'stats_interval' must be at least a second")
	}
	maxStep := time.Duration(servo.MaxPhase) * time.Microsecond
	if c.StepThreshold <= 0 || c.StepThreshold > maxStep {
		return fmt.Errorf("bad config: 'step_threshold' must be within (0, %v]", maxStep)
	}
	if c.TimeConstant < 0 || c.TimeConstant > servo.MaxTC {
		return fmt.Errorf("bad config: 'time_constant' must be within [0, %d]", servo.MaxTC)
	}
	if c.RingSize <= 0 {
		return fmt.Errorf("bad config: 'ring_size' must be >0")
	}
	if c.MonitoringPort <= 0 {
		return fmt.Errorf("bad config: 'monitoring_port' must be >0")
	}
	if c.PromPort < 0 || (c.PromPort != 0 && c.PromPort == c.MonitoringPort) {
		return fmt.Errorf("bad config: 'prom_port' must be unset or differ from 'monitoring_port'")
	}
	return c.Math.Prepare()
}

// ReadConfig reads config and unmarshals it from yaml into Config, on top of the defaults
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	err = yaml.UnmarshalStrict(data, c)
	return c, err
}

// Hash fingerprints the effective configuration so hosts running different configs stand out
func (c *Config) Hash() (uint64, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
