// Package propagation supplies satellite states to the geometry pipeline.
//
// The pipeline only depends on the Propagator interface; SGP4Propagator is the
// production implementation and tests inject synthetic orbits through Func.
package propagation

import (
	"errors"
	"time"

	"github.com/star/dopplertrack/internal/transform"
)

// ErrUnavailable is wrapped by every error returned when no state can be
// produced for the requested time. Callers sweeping over time skip the sample.
var ErrUnavailable = errors.New("propagation unavailable")

// Resolution is the time granularity of SGP4 states. Sweeps that sample on
// this grid never ask for an instant the propagator cannot represent.
const Resolution = time.Second

// State is a satellite state at one instant in the TEME frame (km, km/s).
// Time is the instant the state is valid for, which may be earlier than the
// query time. Velocity fields are meaningful only when HasVelocity is true.
type State struct {
	Time        time.Time
	TEME        transform.PositionTEME
	HasVelocity bool
}

// Propagator produces a satellite state at a given time.
type Propagator interface {
	Propagate(t time.Time) (State, error)
}

// Func adapts a plain function to the Propagator interface.
type Func func(t time.Time) (State, error)

// Propagate calls f(t).
func (f Func) Propagate(t time.Time) (State, error) {
	return f(t)
}

// PositionOnly wraps p and strips velocity from every state, for providers
// (or comparisons) that must not use it.
func PositionOnly(p Propagator) Propagator {
	return Func(func(t time.Time) (State, error) {
		st, err := p.Propagate(t)
		if err != nil {
			return State{}, err
		}
		st.TEME.VX, st.TEME.VY, st.TEME.VZ = 0, 0, 0
		st.HasVelocity = false
		return st, nil
	})
}
