package sceneclass

import (
	"math"

	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// selected copies the samples of v where keep is true.
func selected(v []float32, keep func(i int) bool) []float64 {
	var out []float64
	for i, x := range v {
		if keep(i) {
			out = append(out, float64(x))
		}
	}
	return out
}

// meanStd returns the population mean and standard deviation of x. Both are
// NaN for an empty sample.
func meanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(x, nil)
}

// nanMin returns the smallest non-NaN argument, or NaN when there is none.
func nanMin(v ...float64) float64 {
	m := math.NaN()
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		if math.IsNaN(m) || x < m {
			m = x
		}
	}
	return m
}

// percentOf returns 100*n/total, 0 for an empty total.
func percentOf(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

func (e *Engine) debugEnabled() bool {
	return e.logger.Desugar().Core().Enabled(zapcore.DebugLevel)
}

// describe logs summary statistics of x at debug level.
func (e *Engine) describe(name string, x []float64) {
	if !e.debugEnabled() || len(x) == 0 {
		return
	}
	mean, std := meanStd(x)
	e.logger.Debugf("%s: n=%d min=%.4f max=%.4f mean=%.4f std=%.4f",
		name, len(x), floats.Min(x), floats.Max(x), mean, std)
}
