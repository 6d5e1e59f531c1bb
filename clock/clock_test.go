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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   Timeval
		want Timeval
	}{
		{in: Timeval{Sec: 1, Usec: 0}, want: Timeval{Sec: 1, Usec: 0}},
		{in: Timeval{Sec: 1, Usec: 999999}, want: Timeval{Sec: 1, Usec: 999999}},
		{in: Timeval{Sec: 1, Usec: 1000000}, want: Timeval{Sec: 2, Usec: 0}},
		{in: Timeval{Sec: 1, Usec: 2500001}, want: Timeval{Sec: 3, Usec: 500001}},
		{in: Timeval{Sec: 1, Usec: -1}, want: Timeval{Sec: 0, Usec: 999999}},
		{in: Timeval{Sec: 5, Usec: -1000000}, want: Timeval{Sec: 4, Usec: 0}},
		{in: Timeval{Sec: 5, Usec: -1000001}, want: Timeval{Sec: 3, Usec: 999999}},
	}
	for _, c := range cases {
		got := c.in.Normalize()
		require.Equal(t, c.want, got, "normalizing %v", c.in)
		require.True(t, got.Valid())
	}
}

func TestAddSub(t *testing.T) {
	tv := Timeval{Sec: 10, Usec: 999990}
	require.Equal(t, Timeval{Sec: 11, Usec: 5}, tv.Add(15))
	require.Equal(t, Timeval{Sec: 10, Usec: 999980}, tv.Add(-10))
	require.Equal(t, int64(15), tv.Add(15).Sub(tv))
	require.Equal(t, int64(-1000000), Timeval{Sec: 9, Usec: 999990}.Sub(tv))
}

func TestTimeConversion(t *testing.T) {
	ts := time.Unix(725846400, 123456789)
	tv := FromTime(ts)
	require.Equal(t, Timeval{Sec: 725846400, Usec: 123456}, tv)
	require.Equal(t, time.Unix(725846400, 123456000), tv.Time())
	require.Equal(t, "725846400.123456", tv.String())
	require.True(t, Timeval{}.IsZero())
}

func TestFrequencyUnits(t *testing.T) {
	require.InDelta(t, 1000.0, ScaledPPMToPPB(65536), 0.000001)
	require.Equal(t, int64(65536), PPBToScaledPPM(1000.0))
	require.Equal(t, int64(-6554), PPBToScaledPPM(-100.0))
}
