// Package transform converts between the frames used by the Doppler pipeline.
//
// Unit convention, enforced by the types in this package:
//
//   - PositionTEME (inertial, as produced by SGP4) is in km and km/s.
//   - PositionECEF (Earth-fixed) is in meters and m/s.
//
// The km to m conversion happens only in TEMEToECEFWithGMST and ECEFToTEMEWithGMST.
// Every other function in the repository works in one frame and one unit.
//
// The inertial to Earth-fixed rotation uses GMST only (TEME → PEF ≈ ECEF); polar
// motion and the equation of the equinoxes are ignored, which costs tens of meters
// at LEO ranges.
package transform

import (
	"math"
	"time"
)

// PositionTEME is a satellite position and velocity in the TEME frame.
type PositionTEME struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// PositionECEF is a position and velocity in the Earth-fixed frame.
type PositionECEF struct {
	X, Y, Z    float64 // meters
	VX, VY, VZ float64 // m/s
}

// Magnitude returns the position norm in meters.
func (p PositionECEF) Magnitude() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// TEMEToECEF rotates a TEME state into the Earth-fixed frame at time t.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates a TEME state by −gmst about Z.
//
//	r_ecef = R3(θ)·r_teme
//	v_ecef = R3(θ)·v_teme − ω × r_ecef
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	c, s := math.Cos(gmst), math.Sin(gmst)

	x := teme.X*c + teme.Y*s
	y := -teme.X*s + teme.Y*c
	z := teme.Z

	vx := teme.VX*c + teme.VY*s + OmegaEarth*y
	vy := -teme.VX*s + teme.VY*c - OmegaEarth*x
	vz := teme.VZ

	return PositionECEF{
		X: x * 1000, Y: y * 1000, Z: z * 1000,
		VX: vx * 1000, VY: vy * 1000, VZ: vz * 1000,
	}
}

// ECEFToTEME is the inverse of TEMEToECEF.
func ECEFToTEME(ecef PositionECEF, t time.Time) PositionTEME {
	return ECEFToTEMEWithGMST(ecef, GMST(t))
}

// ECEFToTEMEWithGMST undoes TEMEToECEFWithGMST: it adds back ω × r and rotates by +gmst.
func ECEFToTEMEWithGMST(ecef PositionECEF, gmst float64) PositionTEME {
	c, s := math.Cos(gmst), math.Sin(gmst)

	x, y, z := ecef.X/1000, ecef.Y/1000, ecef.Z/1000
	vx := ecef.VX/1000 - OmegaEarth*y
	vy := ecef.VY/1000 + OmegaEarth*x
	vz := ecef.VZ / 1000

	return PositionTEME{
		X:  x*c - y*s,
		Y:  x*s + y*c,
		Z:  z,
		VX: vx*c - vy*s,
		VY: vx*s + vy*c,
		VZ: vz,
	}
}

// ValidateECEF reports whether pos is finite and its radius lies between
// 6200 km and 50000 km, the envelope of Earth-orbiting satellites.
func ValidateECEF(pos PositionECEF) bool {
	for _, v := range [...]float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	const (
		minRadius = 6200e3  // m
		maxRadius = 50000e3 // m
	)
	mag := pos.Magnitude()
	return mag >= minRadius && mag <= maxRadius
}
