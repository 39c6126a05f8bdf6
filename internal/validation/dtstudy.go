package validation

import (
	"fmt"
	"time"

	"github.com/star/dopplertrack/internal/doppler"
	"github.com/star/dopplertrack/internal/rangerate"
)

// DefaultStudySteps are the finite-difference steps compared by DtStudy.
var DefaultStudySteps = []time.Duration{
	time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second, 60 * time.Second,
}

// StudyPoint is the finite-difference result for one step.
type StudyPoint struct {
	DT          time.Duration
	RangeRateMS float64
	ShiftHz     float64
	// ErrorHz is the shift minus the analytic shift; zero when no analytic
	// reference is available.
	ErrorHz float64
}

// Study is the sensitivity of the Doppler estimate to the finite-difference step.
type Study struct {
	Time            time.Time
	CarrierHz       float64
	HasAnalytic     bool
	AnalyticShiftHz float64
	ElevationDeg    float64
	Points          []StudyPoint
}

// DtStudy evaluates the shift at t for each step. A failing step is an error:
// the study is a single-instant diagnostic, not a sweep.
func DtStudy(est *rangerate.Estimator, t time.Time, carrierHz float64, steps []time.Duration) (Study, error) {
	if len(steps) == 0 {
		steps = DefaultStudySteps
	}
	st := Study{Time: t, CarrierHz: carrierHz}

	if a, err := est.Estimate(t, rangerate.AnalyticStrategy()); err == nil {
		st.HasAnalytic = true
		st.AnalyticShiftHz = doppler.Shift(carrierHz, a.RangeRateMS)
		st.ElevationDeg = a.ElevationDeg()
	}

	for _, dt := range steps {
		obs, err := est.Estimate(t, rangerate.FiniteDifferenceStrategy(dt))
		if err != nil {
			return Study{}, fmt.Errorf("dt %s: %w", dt, err)
		}
		p := StudyPoint{
			DT:          dt,
			RangeRateMS: obs.RangeRateMS,
			ShiftHz:     doppler.Shift(carrierHz, obs.RangeRateMS),
		}
		if st.HasAnalytic {
			p.ErrorHz = p.ShiftHz - st.AnalyticShiftHz
		} else {
			st.ElevationDeg = obs.ElevationDeg()
		}
		st.Points = append(st.Points, p)
	}
	return st, nil
}
