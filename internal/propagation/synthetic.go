package propagation

import (
	"math"
	"time"

	"github.com/star/dopplertrack/internal/transform"
)

// MuEarth is Earth's gravitational parameter in km³/s² (WGS-84).
const MuEarth = 398600.4418

// Circular is a two-body circular orbit. It needs no element set and is
// exact, which makes it a reference for checking the estimators.
type Circular struct {
	RadiusKm       float64
	InclinationRad float64
	RAANRad        float64
	PhaseRad       float64 // argument of latitude at Epoch
	Epoch          time.Time
}

// MeanMotion returns the angular rate in rad/s.
func (c Circular) MeanMotion() float64 {
	return math.Sqrt(MuEarth / (c.RadiusKm * c.RadiusKm * c.RadiusKm))
}

// Propagate returns the exact state at t. It never fails.
func (c Circular) Propagate(t time.Time) (State, error) {
	n := c.MeanMotion()
	u := c.PhaseRad + n*t.Sub(c.Epoch).Seconds()

	px, py := c.RadiusKm*math.Cos(u), c.RadiusKm*math.Sin(u)
	vx, vy := -c.RadiusKm*n*math.Sin(u), c.RadiusKm*n*math.Cos(u)

	x, y, z := c.orient(px, py)
	dx, dy, dz := c.orient(vx, vy)

	return State{
		Time:        t,
		TEME:        transform.PositionTEME{X: x, Y: y, Z: z, VX: dx, VY: dy, VZ: dz},
		HasVelocity: true,
	}, nil
}

// orient maps an in-plane vector into TEME: inclination about X, then RAAN about Z.
func (c Circular) orient(a, b float64) (x, y, z float64) {
	ci, si := math.Cos(c.InclinationRad), math.Sin(c.InclinationRad)
	co, so := math.Cos(c.RAANRad), math.Sin(c.RAANRad)

	x1, y1, z1 := a, b*ci, b*si
	return x1*co - y1*so, x1*so + y1*co, z1
}
