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
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/softclock/hw"
	"github.com/facebook/softclock/rtc"
	"github.com/facebook/softclock/servo"
)

// flags
var (
	cmosTimeFlag   string
	cmosBinaryFlag bool
)

func init() {
	RootCmd.AddCommand(cmosCmd)
	cmosCmd.Flags().StringVarP(&cmosTimeFlag, "time", "t", "", "RFC3339 time to load into the CMOS. Empty means now")
	cmosCmd.Flags().BoolVarP(&cmosBinaryFlag, "binary", "b", false, "store the calendar in binary instead of BCD")
}

type cmosRegister struct {
	reg  uint8
	name string
	bcd  bool
}

var cmosRegisters = []cmosRegister{
	{hw.RTCSeconds, "seconds", true},
	{hw.RTCMinutes, "minutes", true},
	{hw.RTCHours, "hours", true},
	{hw.RTCDayOfMonth, "day of month", true},
	{hw.RTCMonth, "month", true},
	{hw.RTCYear, "year", true},
	{hw.RTCFreqSelect, "register A", false},
	{hw.RTCControl, "register B", false},
}

// cmosTable loads t into a simulated CMOS, prints its registers and reads the calendar back
func cmosTable(w io.Writer, t time.Time, binary bool) (int64, error) {
	machine := hw.NewMachine(servo.DefaultConfig().HZ)
	if binary {
		machine.CMOS.SetRegister(hw.RTCControl, machine.CMOS.Register(hw.RTCControl)|hw.RTCDMBinary)
	}
	machine.CMOS.Load(t.UTC())

	table := tablewriter.NewWriter(w)
	table.SetColWidth(20)
	table.SetHeader([]string{"register", "name", "raw", "value"})
	for _, r := range cmosRegisters {
		raw := machine.CMOS.Register(r.reg)
		value := fmt.Sprintf("%08b", raw)
		if r.bcd {
			v := raw
			if !binary {
				v = rtc.BCDToBin(raw)
			}
			value = fmt.Sprintf("%d", v)
		}
		table.Append([]string{
			fmt.Sprintf("0x%02x", r.reg),
			r.name,
			fmt.Sprintf("0x%02x", raw),
			value,
		})
	}
	table.Render()

	bridge := rtc.New(machine, rtc.DefaultConfig())
	cal, err := bridge.Read()
	if errors.Is(err, rtc.ErrHardwareTimeout) {
		log.Warning(err)
	} else if err != nil {
		return 0, err
	}
	epoch, err := cal.Unix()
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(w, "calendar: %s, epoch %d\n", cal, epoch)
	return epoch, nil
}

func cmosRun() error {
	t := time.Now()
	if cmosTimeFlag != "" {
		var err error
		t, err = time.Parse(time.RFC3339, cmosTimeFlag)
		if err != nil {
			return fmt.Errorf("parsing time: %w", err)
		}
	}
	_, err := cmosTable(os.Stdout, t, cmosBinaryFlag)
	return err
}

var cmosCmd = &cobra.Command{
	Use:   "cmos",
	Short: "Show how a time is laid out in the MC146818 registers",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := cmosRun(); err != nil {
			log.Fatal(err)
		}
	},
}
