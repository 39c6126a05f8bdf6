package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"Unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
		{"Vallado example date", time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC), 2453101.827411875},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.time)
			if diff := math.Abs(got - tt.expected); diff > 1e-6 {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f (diff=%.2e)", tt.time, got, tt.expected, diff)
			}
		})
	}
}

// TestGMST cross-checks against go-satellite's GSTimeFromDate, which implements
// the same IAU-82 polynomial through a calendar Julian Date.
func TestGMST(t *testing.T) {
	times := []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		time.Date(2025, 10, 13, 19, 35, 16, 0, time.UTC),
		time.Date(2026, 2, 6, 4, 1, 0, 0, time.UTC),
	}

	for _, tm := range times {
		t.Run(tm.Format(time.RFC3339), func(t *testing.T) {
			ours := GMST(tm)
			ref := satellite.GSTimeFromDate(tm.Year(), int(tm.Month()), tm.Day(), tm.Hour(), tm.Minute(), tm.Second())
			if diff := math.Abs(ours - ref); diff > 1e-8 {
				t.Errorf("GMST = %.12f rad, go-satellite = %.12f rad (diff=%.2e)", ours, ref, diff)
			}
			if ours < 0 || ours >= 2*math.Pi {
				t.Errorf("GMST %.6f outside [0, 2π)", ours)
			}
		})
	}
}

func TestGMSTNonUTCLocation(t *testing.T) {
	utc := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("ART", -3*3600))
	if GMST(utc) != GMST(local) {
		t.Errorf("GMST depends on location: %v vs %v", GMST(utc), GMST(local))
	}
}

func TestTEMEToECEF(t *testing.T) {
	tests := []struct {
		name string
		teme PositionTEME
		time time.Time
	}{
		{
			name: "Vallado example 3-15",
			teme: PositionTEME{X: 5094.18016, Y: 6127.64465, Z: 6380.34453, VX: -4.746131487, VY: 0.786598499, VZ: 5.531931288},
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		},
		{
			name: "LEO equatorial",
			teme: PositionTEME{X: 6778.0, VY: 7.5},
			time: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "LEO polar",
			teme: PositionTEME{Z: 6978.0, VX: 7.4},
			time: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(tt.time.Year(), int(tt.time.Month()), tt.time.Day(), tt.time.Hour(), tt.time.Minute(), tt.time.Second())

			got := TEMEToECEFWithGMST(tt.teme, gmst)
			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.teme.X, Y: tt.teme.Y, Z: tt.teme.Z}, gmst)

			const tolerance = 1.0 // m
			if math.Abs(got.X-ref.X*1000) > tolerance ||
				math.Abs(got.Y-ref.Y*1000) > tolerance ||
				math.Abs(got.Z-ref.Z*1000) > tolerance {
				t.Errorf("position mismatch: ours [%.3f %.3f %.3f] m, ref [%.3f %.3f %.3f] m",
					got.X, got.Y, got.Z, ref.X*1000, ref.Y*1000, ref.Z*1000)
			}
			if !ValidateECEF(got) {
				t.Errorf("ECEF position failed validation: %+v", got)
			}
		})
	}
}

// TestTEMEToECEFVelocity checks the ω × r term for a prograde equatorial orbit.
func TestTEMEToECEFVelocity(t *testing.T) {
	ecef := TEMEToECEFWithGMST(PositionTEME{X: 6778.0, VY: 7.5}, 0)

	if math.Abs(ecef.X-6778000.0) > 0.1 {
		t.Errorf("X = %.1f m, want 6778000", ecef.X)
	}
	want := (7.5 - OmegaEarth*6778.0) * 1000
	if math.Abs(ecef.VY-want) > 0.1 {
		t.Errorf("VY = %.1f m/s, want %.1f", ecef.VY, want)
	}
}

func TestECEFToTEMERoundTrip(t *testing.T) {
	in := PositionTEME{X: -4023.1, Y: 5120.7, Z: 1870.3, VX: -3.1, VY: -4.4, VZ: 5.2}
	tm := time.Date(2025, 10, 13, 19, 35, 16, 0, time.UTC)

	out := ECEFToTEME(TEMEToECEF(in, tm), tm)

	pairs := [][2]float64{
		{in.X, out.X}, {in.Y, out.Y}, {in.Z, out.Z},
		{in.VX, out.VX}, {in.VY, out.VY}, {in.VZ, out.VZ},
	}
	for i, p := range pairs {
		if math.Abs(p[0]-p[1]) > 1e-9 {
			t.Errorf("component %d: got %.12f, want %.12f", i, p[1], p[0])
		}
	}
}

func TestValidateECEF(t *testing.T) {
	tests := []struct {
		name  string
		pos   PositionECEF
		valid bool
	}{
		{"LEO", PositionECEF{X: 6778000}, true},
		{"GEO", PositionECEF{X: 42164000}, true},
		{"too low", PositionECEF{X: 5000000}, false},
		{"too high", PositionECEF{X: 60000000}, false},
		{"NaN", PositionECEF{X: math.NaN()}, false},
		{"Inf", PositionECEF{X: math.Inf(1)}, false},
		{"zero", PositionECEF{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateECEF(tt.pos); got != tt.valid {
				t.Errorf("ValidateECEF(%+v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}
