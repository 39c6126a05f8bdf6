package transform

import (
	"math"
	"time"
)

const (
	// j2000JD is the Julian Date of 2000-01-01T12:00:00Z, the J2000.0 reference epoch.
	j2000JD = 2451545.0

	// unixEpochJD is the Julian Date of 1970-01-01T00:00:00Z.
	unixEpochJD = 2440587.5

	secondsPerDay  = 86400.0
	daysPerCentury = 36525.0
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// unixSeconds returns t as fractional Unix seconds.
func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// JulianDate converts t to a Julian Date (UTC, UT1 assumed equal to UTC).
func JulianDate(t time.Time) float64 {
	return unixEpochJD + unixSeconds(t)/secondsPerDay
}

// GMST returns Greenwich Mean Sidereal Time in radians, in [0, 2π).
//
// IAU-82 polynomial (Vallado Eq 3-47) in Julian centuries T elapsed since J2000.0:
//
//	θ = 67310.54841 + (876600h + 8640184.812866)·T + 0.093104·T² − 6.2e-6·T³  [s]
func GMST(t time.Time) float64 {
	T := (JulianDate(t) - j2000JD) / daysPerCentury

	sec := 67310.54841 +
		(876600.0*3600.0+8640184.812866)*T +
		0.093104*T*T -
		6.2e-6*T*T*T

	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}
