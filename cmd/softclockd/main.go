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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	sd "github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/facebook/softclock/daemon"
)

func main() {
	var (
		cfg     = daemon.DefaultConfig()
		err     error
		cfgPath string
		csvLog  bool
		csvPath string
		verbose bool
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "softclock daemon\n")
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\nFlags:\n", daemon.MathHelp)
		flag.PrintDefaults()
	}

	flag.IntVar(&cfg.Kernel.Clock.HZ, "hz", cfg.Kernel.Clock.HZ, "Timer interrupt frequency")
	flag.BoolVar(&cfg.Kernel.RTCSync, "rtcsync", cfg.Kernel.RTCSync, "Write the disciplined clock back to the CMOS every 11 minutes")
	flag.BoolVar(&cfg.Kernel.RTC.ForceBCD, "forcebcd", cfg.Kernel.RTC.ForceBCD, "Treat the CMOS calendar as BCD regardless of the data mode bit")
	flag.IntVar(&cfg.MonitoringPort, "monitoringport", cfg.MonitoringPort, "Port to run monitoring server on")
	flag.IntVar(&cfg.PromPort, "promport", cfg.PromPort, "Port to export prometheus metrics on. 0 means disabled")
	flag.IntVar(&cfg.RingSize, "buffer", cfg.RingSize, "Size of ring buffers, must be at least size of largest num of samples used in error formulas")
	flag.StringVar(&cfg.Math.MaxError, "maxerror", cfg.Math.MaxError, "Math expression for maximum error")
	flag.StringVar(&cfg.Math.EstError, "esterror", cfg.Math.EstError, "Math expression for estimated error")
	flag.DurationVar(&cfg.DisciplineInterval, "i", cfg.DisciplineInterval, "Interval at which we compare the kernel clock with the host clock")
	flag.DurationVar(&cfg.StatsInterval, "statsinterval", cfg.StatsInterval, "Interval at which we collect stats")
	flag.DurationVar(&cfg.StepThreshold, "step", cfg.StepThreshold, "Offsets above this are stepped instead of slewed")

	flag.StringVar(&cfgPath, "cfg", "", "Path to config")
	flag.BoolVar(&csvLog, "csvlog", false, "Log all the metrics as CSV to log")
	flag.StringVar(&csvPath, "csvpath", "", "write CSV log into this file")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")

	flag.Parse()

	log.SetReportCaller(true)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if csvPath != "" && !csvLog {
		log.Fatalf("'csvpath' flag requires 'csvlog' flag")
	}
	if cfgPath != "" {
		log.Warningf("using config from %s, flag values are ignored", cfgPath)
		cfg, err = daemon.ReadConfig(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.EvalAndValidate(); err != nil {
		log.Fatal(err)
	}
	log.Debugf("Config: %+v", *cfg)

	// set up sample logging
	w := log.StandardLogger().Writer()
	defer w.Close()
	var l daemon.Logger = daemon.NewDummyLogger(w)
	if csvLog {
		csvW := io.Writer(w)
		if csvPath != "" {
			f, err := os.Create(csvPath)
			if err != nil {
				log.Fatal(err)
			}
			defer f.Close()
			// write both to stderr and file
			csvW = io.MultiWriter(w, f)
		}
		l = daemon.NewCSVLogger(csvW)
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	stats := daemon.NewJSONStats()
	s, err := daemon.New(cfg, stats, l)
	if err != nil {
		log.Fatal(err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return stats.Start(ctx, cfg.MonitoringPort) })
	if cfg.PromPort != 0 {
		exporter := daemon.NewPrometheusExporter(stats, cfg.PromPort, cfg.StatsInterval)
		eg.Go(func() error { return exporter.Start(ctx) })
	}
	eg.Go(func() error { return s.Run(ctx) })

	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		log.Warningf("notifying systemd: %v", err)
	} else if ok {
		log.Debugf("notified systemd")
	}

	if err := eg.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Info("exiting")
}
