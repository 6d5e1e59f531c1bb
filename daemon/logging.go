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
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
)

// LogSample has all the measurements we may want to log
type LogSample struct {
	OffsetUS       float64
	OffsetMeanUS   float64
	OffsetStddevUS float64
	FreqPPM        float64
	FreqMeanPPM    float64
	FreqStddevPPM  float64
	MaxErrorUS     float64
	EstErrorUS     float64
	Status         string
}

var header = []string{
	"offset",
	"offset_mean",
	"offset_stddev",
	"freq",
	"freq_mean",
	"freq_stddev",
	"max_error",
	"est_error",
	"status",
}

// CSVRecords returns all data from this sample as CSV. Must by synced with `header` variable.
func (s *LogSample) CSVRecords() []string {
	return []string{
		strconv.FormatFloat(s.OffsetUS, 'f', -1, 64),
		strconv.FormatFloat(s.OffsetMeanUS, 'f', -1, 64),
		strconv.FormatFloat(s.OffsetStddevUS, 'f', -1, 64),
		strconv.FormatFloat(s.FreqPPM, 'f', -1, 64),
		strconv.FormatFloat(s.FreqMeanPPM, 'f', -1, 64),
		strconv.FormatFloat(s.FreqStddevPPM, 'f', -1, 64),
		strconv.FormatFloat(s.MaxErrorUS, 'f', -1, 64),
		strconv.FormatFloat(s.EstErrorUS, 'f', -1, 64),
		s.Status,
	}
}

// Logger is something that can store LogSample somewhere
type Logger interface {
	Log(*LogSample) error
}

// CSVLogger logs Sample as CSV into given writer
type CSVLogger struct {
	sync.Mutex
	csvwriter     *csv.Writer
	printedHeader bool
}

// NewCSVLogger returns new CSVLogger
func NewCSVLogger(w io.Writer) *CSVLogger {
	return &CSVLogger{
		csvwriter: csv.NewWriter(w),
	}
}

// Log implements Logger interface
func (l *CSVLogger) Log(s *LogSample) error {
	l.Lock()
	defer l.Unlock()
	if !l.printedHeader {
		if err := l.csvwriter.Write(header); err != nil {
			return err
		}
		l.printedHeader = true
	}
	if err := l.csvwriter.Write(s.CSVRecords()); err != nil {
		return err
	}
	l.csvwriter.Flush()
	return l.csvwriter.Error()
}

// DummyLogger logs offset and status to given writer
type DummyLogger struct {
	w io.Writer
}

// NewDummyLogger returns new DummyLogger
func NewDummyLogger(w io.Writer) *DummyLogger {
	return &DummyLogger{w: w}
}

// Log implements Logger interface
func (l *DummyLogger) Log(s *LogSample) error {
	_, err := fmt.Fprintf(l.w, "offset = %vus, max error = %vus, status = %s\n", s.OffsetUS, s.MaxErrorUS, s.Status)
	return err
}
