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

package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/exp/constraints"

	"github.com/facebook/softclock/daemon"
	"github.com/facebook/softclock/servo"
)

// flags
var (
	statusAddressFlag  string
	statusMaxErrorFlag int64
	statusOffsetFlag   int64
)

type result int

// possible check results
const (
	OK result = iota
	WARN
	FAIL
)

func (r result) String() string {
	switch r {
	case OK:
		return color.GreenString("[ OK ]")
	case WARN:
		return color.YellowString("[WARN]")
	default:
		return color.RedString("[FAIL]")
	}
}

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusAddressFlag, "address", "a", "http://localhost:21040", "softclockd monitoring address")
	statusCmd.Flags().Int64Var(&statusMaxErrorFlag, "maxerror", 1000, "warn when the kernel maximum error in us is above this")
	statusCmd.Flags().Int64Var(&statusOffsetFlag, "offset", 100, "warn when the offset from the host clock in us is above this")
}

// checker is function that does checks on softclockd counters
type checker func(counters map[string]int64) (result, string)

func fmtThreshold(warnThreshold any) string {
	return color.BlueString("%v", warnThreshold)
}

// generic function to check value against some thresholds
func checkAgainstThreshold[T constraints.Ordered](name string, value, warnThreshold, failThreshold T, explanation string) (result, string) {
	msgTemplate := "%s is %s, we expect it to be within %s%s"
	thresholdStr := fmtThreshold(warnThreshold)

	if value > failThreshold {
		return FAIL, fmt.Sprintf(msgTemplate, name, color.RedString("%v", value), thresholdStr, ". "+explanation)
	}
	if value > warnThreshold {
		return WARN, fmt.Sprintf(msgTemplate, name, color.YellowString("%v", value), thresholdStr, ". "+explanation)
	}
	return OK, fmt.Sprintf(msgTemplate, name, color.GreenString("%v", value), thresholdStr, "")
}

func abs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

func checkStatus(counters map[string]int64) (result, string) {
	st := servo.Status(counters["status"])
	switch st {
	case servo.StatusOK:
		return OK, fmt.Sprintf("clock status is %s", color.GreenString("%s", st))
	case servo.StatusInsert, servo.StatusDelete, servo.StatusOOP, servo.StatusWait:
		return WARN, fmt.Sprintf("clock status is %s, a leap second is in progress", color.YellowString("%s", st))
	}
	return FAIL, fmt.Sprintf("clock status is %s, the clock is not synchronized", color.RedString("%s", st))
}

func checkOffset(warn int64) checker {
	return func(counters map[string]int64) (result, string) {
		return checkAgainstThreshold("Offset from host clock (us)", abs(counters["offset_us"]), warn, 100*warn,
			"Large offsets mean the discipline loop can't keep up")
	}
}

func checkMaxError(warn int64) checker {
	return func(counters map[string]int64) (result, string) {
		return checkAgainstThreshold("Maximum error (us)", counters["max_error_us"], warn, 100*warn,
			"Maximum error grows when nobody disciplines the clock")
	}
}

func checkRTCSync(counters map[string]int64) (result, string) {
	return checkAgainstThreshold("RTC sync errors", counters["kernel.rtc_sync_errors"], 0, 10,
		"The CMOS clock drifted too far from the kernel clock to be written back")
}

// diagnose runs all checks and prints results, returning the worst one
func diagnose(w io.Writer, counters map[string]int64, checks []checker) result {
	worst := OK
	for _, check := range checks {
		res, msg := check(counters)
		fmt.Fprintf(w, "%s %s\n", res, msg)
		if res > worst {
			worst = res
		}
	}
	return worst
}

func printCounters(w io.Writer, counters map[string]int64) {
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "\t%s: %d\n", k, counters[k])
	}
}

func statusRun(address string) error {
	counters, err := daemon.FetchCounters(address)
	if err != nil {
		return fmt.Errorf("fetching counters: %w", err)
	}
	if rootVerboseFlag {
		printCounters(os.Stdout, counters)
	}
	checks := []checker{
		checkStatus,
		checkOffset(statusOffsetFlag),
		checkMaxError(statusMaxErrorFlag),
		checkRTCSync,
	}
	if diagnose(os.Stdout, counters, checks) == FAIL {
		return fmt.Errorf("some checks failed")
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check health of a running softclockd",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := statusRun(statusAddressFlag); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}
