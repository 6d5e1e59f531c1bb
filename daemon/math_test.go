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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	input := []float64{3, 5, 8, 8}
	want := 6.0
	assert.Equal(t, want, mean(input))
	input = []float64{1, 4, 0, 3, 8}
	want = 3.2
	assert.Equal(t, want, mean(input))
}

func TestVariance(t *testing.T) {
	input := []float64{1, 4, 0, 3, 8}
	want := 9.7
	assert.InDelta(t, want, variance(input), 1e-9)
	assert.InDelta(t, 3.1144823, stddev(input), 1e-6)
}

func TestPrepareExpression(t *testing.T) {
	input := "abs(mean(offset, 5)) + 1.0 * stddev(offset, 4) + 1.0 * stddev(freq, 5) + mean(freqchangeabs, 4)"
	expr, err := prepareExpression(input)
	require.Nil(t, err)

	parameters := map[string]interface{}{
		"offset":        []float64{-1, -2, -3, -4, -5},
		"freq":          []float64{2, 2, 2, 2, 2},
		"freqchangeabs": []float64{0, 0, 0, 0},
	}
	got, err := expr.Evaluate(parameters)
	require.Nil(t, err)
	assert.InDelta(t, 3.0+1.2909944, got.(float64), 1e-6)
}

func TestPrepareExpressionUnsupportedVar(t *testing.T) {
	_, err := prepareExpression("abs(mean(offset, 5)) + 1.0 * stddev(delay, 4)")
	require.Error(t, err)
}

func TestPrepareExpressionNotEnoughValues(t *testing.T) {
	expr, err := prepareExpression("mean(offset, 50)")
	require.Nil(t, err)
	got, err := expr.Evaluate(map[string]interface{}{"offset": []float64{1, 2, 3}})
	require.Nil(t, err)
	assert.Equal(t, 2.0, got)
}

func TestPrepareMathParameters(t *testing.T) {
	samples := []*sample{
		{OffsetUS: 10, FreqPPM: 1.5},
		{OffsetUS: -20, FreqPPM: 1.0},
		{OffsetUS: 30, FreqPPM: 2.0},
	}
	got := prepareMathParameters(samples)
	require.Equal(t, []float64{10, -20, 30}, got["offset"])
	require.Equal(t, []float64{1.5, 1.0, 2.0}, got["freq"])
	require.Equal(t, []float64{0.5, 1.0}, got["freqchangeabs"])
}

func TestMathErrors(t *testing.T) {
	m := Math{
		MaxError: "abs(mean(offset, 2)) + 5",
		EstError: "abs(jitter)",
	}
	require.Error(t, m.Prepare())

	m.EstError = "stddev(offset, 2)"
	require.NoError(t, m.Prepare())

	maxErr, estErr, err := m.Errors([]*sample{{OffsetUS: 10}, {OffsetUS: 20}, {OffsetUS: 1000}})
	require.NoError(t, err)
	assert.Equal(t, 20.0, maxErr)
	assert.InDelta(t, 7.0710678, estErr, 1e-6)

	_, _, err = m.Errors(nil)
	require.ErrorIs(t, err, errNotEnoughData)
}
