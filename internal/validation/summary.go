package validation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/star/dopplertrack/internal/doppler"
	"github.com/star/dopplertrack/internal/metrics"
)

// Summary compares the two strategies over the valid rows and reports the
// Doppler envelope of the finite-difference trace.
type Summary struct {
	Compared     int     // rows with both strategies
	MeanDiffMS   float64 // mean of finite-difference − analytic
	StdDiffMS    float64
	MaxAbsDiffMS float64
	RMSDiffMS    float64

	MinShiftHz  float64
	MaxShiftHz  float64
	MeanShiftHz float64
	Implausible int // shifts beyond doppler.MaxShift
}

// SpanHz is the total Doppler excursion.
func (s Summary) SpanHz() float64 { return s.MaxShiftHz - s.MinShiftHz }

// Summarize computes a Summary for rows at carrier Hz.
func Summarize(rows []Row, carrierHz float64) Summary {
	var diffs, shifts []float64
	var s Summary

	for _, r := range rows {
		if !r.Valid {
			continue
		}
		shift := doppler.Shift(carrierHz, r.FiniteDiffRateMS)
		shifts = append(shifts, shift)
		if !doppler.Plausible(carrierHz, shift) {
			s.Implausible++
			metrics.RecordImplausible()
		}
		if r.HasAnalytic {
			diffs = append(diffs, r.FiniteDiffRateMS-r.AnalyticRateMS)
		}
	}

	if len(shifts) > 0 {
		s.MinShiftHz = floats.Min(shifts)
		s.MaxShiftHz = floats.Max(shifts)
		s.MeanShiftHz = stat.Mean(shifts, nil)
	}

	s.Compared = len(diffs)
	if s.Compared == 0 {
		return s
	}
	s.MeanDiffMS, s.StdDiffMS = stat.MeanStdDev(diffs, nil)
	if s.Compared == 1 {
		s.StdDiffMS = 0
	}
	s.RMSDiffMS = floats.Norm(diffs, 2) / math.Sqrt(float64(s.Compared))

	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	s.MaxAbsDiffMS = floats.Max(abs)
	return s
}
