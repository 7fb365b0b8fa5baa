// Package metrics computes region statistics and the derived MRI
// quality-assurance metrics (SNR, PIU) from phantom images.
package metrics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrNoData is returned when a region contains no finite pixel values.
var ErrNoData = errors.New("metrics: no finite pixel values in region")

// SNR multipliers. The NEMA MS-series protocols apply a correction factor
// that depends on how the noise sample was acquired: paired image/noise
// acquisitions and single coil elements use 0.66, combined multi-element
// views use 0.70, and the weekly single-image check uses the raw ratio.
const (
	SNRWeekly   = 1.0
	SNRPaired   = 0.66
	SNRCombined = 0.70
)

// Stats holds the basic statistics of one region's pixel values.
type Stats struct {
	Mean   float64
	Min    float64
	Max    float64
	Sum    float64
	StdDev    float64 // population standard deviation
	N         int     // finite values included
	NonFinite int     // NaN/Inf values excluded
}

// Compute calculates Stats over the given pixel values. Non-finite values
// are excluded from every statistic and counted in NonFinite. Returns
// ErrNoData when nothing finite remains.
func Compute(values []float64) (Stats, error) {
	finite := make([]float64, 0, len(values))
	nonFinite := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			nonFinite++
			continue
		}
		finite = append(finite, v)
	}
	if len(finite) == 0 {
		return Stats{NonFinite: nonFinite}, ErrNoData
	}
	return Stats{
		Mean:      stat.Mean(finite, nil),
		Min:       floats.Min(finite),
		Max:       floats.Max(finite),
		Sum:       floats.Sum(finite),
		StdDev:    stat.PopStdDev(finite, nil),
		N:         len(finite),
		NonFinite: nonFinite,
	}, nil
}

// Measurement is a derived metric that may be undefined (for example SNR
// with zero noise). Undefined measurements are reported as such, never as
// a crash or a fake zero.
type Measurement struct {
	Value   float64
	Defined bool
}

// Defined wraps a valid measurement value.
func Defined(v float64) Measurement {
	return Measurement{Value: v, Defined: true}
}

// Undefined returns the sentinel for a metric whose formula has no result.
func Undefined() Measurement {
	return Measurement{}
}

// SNR computes multiplier * signalMean / noiseSD. Undefined when the noise
// standard deviation is zero.
func SNR(signalMean, noiseSD, multiplier float64) Measurement {
	if noiseSD == 0 {
		return Undefined()
	}
	return Defined(multiplier * signalMean / noiseSD)
}

// PIU computes the percent integral uniformity over a signal region:
// 100 * (1 - (max-min)/(max+min)). Undefined when max+min is zero.
func PIU(max, min float64) Measurement {
	denom := max + min
	if denom == 0 {
		return Undefined()
	}
	return Defined(100.0 * (1.0 - (max-min)/denom))
}
