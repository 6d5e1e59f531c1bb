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
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// MathHelp is a help message used by flags in main
const MathHelp = `When composing the -maxerror and -esterror formulas, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  offset (list of last offsets from the host clock, in us, newest first)
  freq (list of last frequency corrections, in ppm)
  freqchangeabs (list of last changes in frequency, abs values)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1
  mean(values, number) - mean of 'number' newest values, for example mean(offset, 10)
  variance(values, number) - variance of 'number' newest values
  stddev(values, number) - standard deviation of 'number' newest values`

const (
	// MathDefaultHistory is a default number of samples to keep
	MathDefaultHistory = 60
	// MathDefaultMaxError is a default formula for the maximum error reported to the kernel
	MathDefaultMaxError = "abs(mean(offset, 60)) + 3.0 * stddev(offset, 60) + 1.5 * mean(freqchangeabs, 59)"
	// MathDefaultEstError is a default formula for the estimated error reported to the kernel
	MathDefaultEstError = "stddev(offset, 60)"
)

// Math stores our math expressions for error estimates in two forms: string and parsed
type Math struct {
	MaxError     string `yaml:"max_error"`
	maxErrorExpr *govaluate.EvaluableExpression
	EstError     string `yaml:"est_error"`
	estErrorExpr *govaluate.EvaluableExpression
}

// Prepare will prepare all math expressions
func (m *Math) Prepare() error {
	var err error
	m.maxErrorExpr, err = prepareExpression(m.MaxError)
	if err != nil {
		return fmt.Errorf("evaluating max error: %w", err)
	}
	m.estErrorExpr, err = prepareExpression(m.EstError)
	if err != nil {
		return fmt.Errorf("evaluating est error: %w", err)
	}
	return nil
}

// Errors evaluates both expressions against the samples, newest first
func (m *Math) Errors(samples []*sample) (maxError, estError float64, err error) {
	if len(samples) == 0 {
		return 0, 0, fmt.Errorf("%w: no samples", errNotEnoughData)
	}
	params := mapOfInterface(prepareMathParameters(samples))
	maxError, err = evaluate(m.maxErrorExpr, params)
	if err != nil {
		return 0, 0, fmt.Errorf("max error: %w", err)
	}
	estError, err = evaluate(m.estErrorExpr, params)
	if err != nil {
		return 0, 0, fmt.Errorf("est error: %w", err)
	}
	return maxError, estError, nil
}

func evaluate(expr *govaluate.EvaluableExpression, params map[string]interface{}) (float64, error) {
	raw, err := expr.Evaluate(params)
	if err != nil {
		return 0, err
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q is not a number", expr.String())
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("expression %q evaluated to %v", expr.String(), v)
	}
	return v, nil
}

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func variance(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Variance()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}

var supportedVariables = []string{
	"offset",
	"freq",
	"freqchangeabs",
}

func isSupportedVar(varName string) bool {
	for _, v := range supportedVariables {
		if v == varName {
			return true
		}
	}
	return false
}

func newest(args []interface{}) ([]float64, error) {
	vals, ok := args[0].([]float64)
	if !ok {
		return nil, fmt.Errorf("first argument must be a variable")
	}
	n, ok := args[1].(float64)
	if !ok {
		return nil, fmt.Errorf("second argument must be a number")
	}
	if len(vals) < int(n) {
		return vals, nil
	}
	return vals[:int(n)], nil
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: argument must be a number")
		}
		return math.Abs(val), nil
	},
	"mean": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("mean: wrong number of arguments: want 2, got %d", len(args))
		}
		vals, err := newest(args)
		if err != nil {
			return nil, fmt.Errorf("mean: %w", err)
		}
		return mean(vals), nil
	},
	"variance": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("variance: wrong number of arguments: want 2, got %d", len(args))
		}
		vals, err := newest(args)
		if err != nil {
			return nil, fmt.Errorf("variance: %w", err)
		}
		return variance(vals), nil
	},
	"stddev": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("stddev: wrong number of arguments: want 2, got %d", len(args))
		}
		vals, err := newest(args)
		if err != nil {
			return nil, fmt.Errorf("stddev: %w", err)
		}
		return stddev(vals), nil
	},
}

func prepareExpression(exprStr string) (*govaluate.EvaluableExpression, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return expr, nil
}

func prepareMathParameters(lastN []*sample) map[string][]float64 {
	size := len(lastN)
	offsets := make([]float64, size)
	freqs := make([]float64, size)
	freqChangesAbs := make([]float64, 0, size)
	for i, s := range lastN {
		offsets[i] = s.OffsetUS
		freqs[i] = s.FreqPPM
		if i != 0 {
			freqChangesAbs = append(freqChangesAbs, math.Abs(s.FreqPPM-lastN[i-1].FreqPPM))
		}
	}
	return map[string][]float64{
		"offset":        offsets,
		"freq":          freqs,
		"freqchangeabs": freqChangesAbs,
	}
}

func mapOfInterface(m map[string][]float64) map[string]interface{} {
	mm := make(map[string]interface{}, len(m))
	for k, v := range m {
		mm[k] = v
	}
	return mm
}
