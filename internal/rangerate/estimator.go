// Package rangerate computes slant range and range-rate between a ground
// station and a propagated satellite, by either of two strategies that are
// meant to be cross-checked against each other.
//
// All geometry is done in the Earth-fixed frame in meters; inertial states are
// converted once, through transform.TEMEToECEF.
package rangerate

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/transform"
)

var (
	// ErrNoVelocity is returned by the analytic strategy when the propagator
	// did not supply velocity.
	ErrNoVelocity = errors.New("analytic range-rate needs satellite velocity")

	// ErrInvalidStep is returned for a non-positive finite-difference step.
	ErrInvalidStep = errors.New("finite difference step must be positive")
)

// Observation is the geometry between the station and the satellite at one instant.
type Observation struct {
	Time         time.Time
	Strategy     Strategy
	AzimuthRad   float64
	ElevationRad float64
	RangeM       float64
	RangeRateMS  float64 // positive = receding
	Satellite    transform.PositionECEF
}

// AzimuthDeg returns the azimuth in degrees.
func (o Observation) AzimuthDeg() float64 { return o.AzimuthRad * 180 / math.Pi }

// ElevationDeg returns the elevation in degrees.
func (o Observation) ElevationDeg() float64 { return o.ElevationRad * 180 / math.Pi }

// SubSatellite returns the geodetic point beneath the satellite, with AltM
// its height above the ellipsoid.
func (o Observation) SubSatellite() transform.GeodeticPoint {
	return transform.ECEFToGeodetic(o.Satellite)
}

// Estimator binds one station to one satellite. It holds no mutable state and
// is safe for concurrent use if the propagator is.
type Estimator struct {
	station transform.Station
	prop    propagation.Propagator
}

// New creates an Estimator.
func New(station transform.Station, prop propagation.Propagator) *Estimator {
	return &Estimator{station: station, prop: prop}
}

// Station returns the bound station.
func (e *Estimator) Station() transform.Station { return e.station }

// earthFixed propagates to t and rotates the state into the Earth-fixed frame
// at the instant the state is valid for. A propagator that leaves State.Time
// unset is taken to be exact at t.
func (e *Estimator) earthFixed(t time.Time) (transform.PositionECEF, propagation.State, error) {
	st, err := e.prop.Propagate(t)
	if err != nil {
		return transform.PositionECEF{}, propagation.State{}, err
	}
	if st.Time.IsZero() {
		st.Time = t
	}
	return transform.TEMEToECEF(st.TEME, st.Time), st, nil
}

// LookAngles returns azimuth, elevation and range at t from position alone.
func (e *Estimator) LookAngles(t time.Time) (transform.LookAngles, error) {
	sat, _, err := e.earthFixed(t)
	if err != nil {
		return transform.LookAngles{}, err
	}
	return transform.ECEFToLookAngles(e.station, sat), nil
}

// Estimate computes an Observation at t with strategy s. Observation.Time is
// the instant the propagated state is valid for. A propagation failure
// at t (or at t+DT) is returned unchanged, so callers can test it with
// errors.Is(err, propagation.ErrUnavailable) and skip the sample.
func (e *Estimator) Estimate(t time.Time, s Strategy) (Observation, error) {
	if s.Kind == FiniteDifference && s.DT <= 0 {
		return Observation{}, fmt.Errorf("step %s: %w", s.DT, ErrInvalidStep)
	}

	sat, state, err := e.earthFixed(t)
	if err != nil {
		return Observation{}, err
	}

	la := transform.ECEFToLookAngles(e.station, sat)
	obs := Observation{
		Time:         state.Time,
		Strategy:     s,
		AzimuthRad:   la.AzimuthRad,
		ElevationRad: la.ElevationRad,
		RangeM:       la.RangeM,
		Satellite:    sat,
	}

	switch s.Kind {
	case Analytic:
		if !state.HasVelocity {
			return Observation{}, ErrNoVelocity
		}
		obs.RangeRateMS = analyticRate(e.station.ECEF, sat)
	case FiniteDifference:
		later, laterState, err := e.earthFixed(t.Add(s.DT))
		if err != nil {
			return Observation{}, fmt.Errorf("second sample at +%s: %w", s.DT, err)
		}
		elapsed := laterState.Time.Sub(state.Time)
		if elapsed <= 0 {
			return Observation{}, fmt.Errorf("step %s below propagator resolution: %w", s.DT, ErrInvalidStep)
		}
		obs.RangeRateMS = (slantRange(e.station.ECEF, later) - obs.RangeM) / elapsed.Seconds()
	default:
		return Observation{}, fmt.Errorf("unknown strategy kind %d", s.Kind)
	}

	return obs, nil
}

// Both estimates t with the analytic strategy and with a forward difference over dt.
func (e *Estimator) Both(t time.Time, dt time.Duration) (analytic, fd Observation, err error) {
	if analytic, err = e.Estimate(t, AnalyticStrategy()); err != nil {
		return Observation{}, Observation{}, err
	}
	if fd, err = e.Estimate(t, FiniteDifferenceStrategy(dt)); err != nil {
		return Observation{}, Observation{}, err
	}
	return analytic, fd, nil
}

func position(p transform.PositionECEF) r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }
func velocity(p transform.PositionECEF) r3.Vec { return r3.Vec{X: p.VX, Y: p.VY, Z: p.VZ} }

func slantRange(station, sat transform.PositionECEF) float64 {
	return r3.Norm(r3.Sub(position(sat), position(station)))
}

// analyticRate is (v_sat − v_station)·(r_sat − r_station)/|r_sat − r_station|.
// A station is at rest in the Earth-fixed frame.
func analyticRate(station, sat transform.PositionECEF) float64 {
	rel := r3.Sub(position(sat), position(station))
	rng := r3.Norm(rel)
	if rng == 0 {
		return 0
	}
	return r3.Dot(velocity(sat), rel) / rng
}
