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

package servo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	require.Equal(t, "OK", StatusOK.String())
	require.Equal(t, "INSERT", StatusInsert.String())
	require.Equal(t, "DELETE", StatusDelete.String())
	require.Equal(t, "OOP", StatusOOP.String())
	require.Equal(t, "WAIT", StatusWait.String())
	require.Equal(t, "BAD", StatusBad.String())
	require.Equal(t, "UNSUPPORTED", Status(6).String())
	require.False(t, Status(-1).Valid())
	require.True(t, StatusWait.Valid())
}

func TestFrequencyScale(t *testing.T) {
	require.Equal(t, Frequency(1<<ShiftKF), ScaledPPM(1<<ShiftUSec).Frequency())
	require.Equal(t, ScaledPPM(1<<ShiftUSec), Frequency(1<<ShiftKF).ScaledPPM())
	require.Equal(t, ScaledPPM(62), Frequency(1000).ScaledPPM())
	require.Equal(t, ScaledPPM(-63), Frequency(-1000).ScaledPPM())
	require.InDelta(t, 1.5, ScaledPPM(3<<(ShiftUSec-1)).PPM(), 1e-9)
}

func TestOffsetScale(t *testing.T) {
	require.Equal(t, Offset(16384000), OffsetFromUSec(1000))
	require.Equal(t, int64(1000), OffsetFromUSec(1000).USec())
	require.Equal(t, int64(-1), Offset(-1).USec())
}

func TestShiftHZ(t *testing.T) {
	require.Equal(t, uint(4), ShiftHZ(16))
	require.Equal(t, uint(6), ShiftHZ(64))
	require.Equal(t, uint(7), ShiftHZ(100))
	require.Equal(t, uint(8), ShiftHZ(250))
	require.Equal(t, uint(10), ShiftHZ(1000))
}

func TestFineTune(t *testing.T) {
	require.Equal(t, Phase(2811494), FineTune(100, 1193180))
}
