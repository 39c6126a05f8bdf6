package transform

import "math"

// LookAngles holds azimuth, elevation and slant range from a station to a target.
type LookAngles struct {
	AzimuthRad   float64 // 0 = North, clockwise, [0, 2π)
	ElevationRad float64 // 0 = horizon, π/2 = zenith
	RangeM       float64
}

// AzimuthDeg returns the azimuth in degrees.
func (la LookAngles) AzimuthDeg() float64 { return la.AzimuthRad * 180 / math.Pi }

// ElevationDeg returns the elevation in degrees.
func (la LookAngles) ElevationDeg() float64 { return la.ElevationRad * 180 / math.Pi }

// ECEFToLookAngles computes look angles from st to an Earth-fixed target (meters)
// through the SEZ (South-East-Zenith) rotation of Vallado §4.4.
func ECEFToLookAngles(st Station, target PositionECEF) LookAngles {
	rx := target.X - st.ECEF.X
	ry := target.Y - st.ECEF.Y
	rz := target.Z - st.ECEF.Z

	sinLat, cosLat := math.Sin(st.LatRad), math.Cos(st.LatRad)
	sinLon, cosLon := math.Sin(st.LonRad), math.Cos(st.LonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + zenith*zenith)
	if rng == 0 {
		return LookAngles{ElevationRad: math.Pi / 2}
	}

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthRad:   az,
		ElevationRad: math.Asin(zenith / rng),
		RangeM:       rng,
	}
}
