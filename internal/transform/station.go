package transform

import "math"

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Station is a ground station. Angles are stored in radians; the Earth-fixed
// position is computed once at construction. Treat as immutable.
type Station struct {
	Name            string
	LatRad, LonRad  float64
	AltM            float64 // above the WGS-84 ellipsoid
	MinElevationRad float64
	ECEF            PositionECEF
}

// NewStation builds a Station from degrees. Out-of-range angles are not
// rejected; the caller is responsible for normalizing them.
func NewStation(name string, latDeg, lonDeg, altM, minElevationDeg float64) Station {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	return Station{
		Name:            name,
		LatRad:          lat,
		LonRad:          lon,
		AltM:            altM,
		MinElevationRad: minElevationDeg * math.Pi / 180,
		ECEF:            GeodeticToECEF(lat, lon, altM),
	}
}

// MinElevationDeg returns the elevation mask in degrees.
func (s Station) MinElevationDeg() float64 {
	return s.MinElevationRad * 180 / math.Pi
}

// LatDeg returns the station latitude in degrees.
func (s Station) LatDeg() float64 { return s.LatRad * 180 / math.Pi }

// LonDeg returns the station longitude in degrees.
func (s Station) LonDeg() float64 { return s.LonRad * 180 / math.Pi }

// GeodeticToECEF converts geodetic latitude/longitude (radians) and altitude
// (meters) to an Earth-fixed position in meters. Closed form, no iteration.
func GeodeticToECEF(latRad, lonRad, altM float64) PositionECEF {
	sinLat, cosLat := math.Sin(latRad), math.Cos(latRad)
	sinLon, cosLon := math.Sin(lonRad), math.Cos(lonRad)

	// Prime-vertical radius of curvature.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return PositionECEF{
		X: (n + altM) * cosLat * cosLon,
		Y: (n + altM) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + altM) * sinLat,
	}
}

// GeodeticPoint is a geodetic position (degrees, meters).
type GeodeticPoint struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltM   float64 `json:"alt_m"`
}

// ECEFToGeodetic converts an Earth-fixed position in meters to geodetic
// coordinates with Bowring's iteration; a handful of rounds is enough at orbital radii.
func ECEFToGeodetic(pos PositionECEF) GeodeticPoint {
	lon := math.Atan2(pos.Y, pos.X)
	p := math.Hypot(pos.X, pos.Y)

	lat := math.Atan2(pos.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(pos.Z+wgs84E2*n*sinLat, p)
	}

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(pos.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180 / math.Pi,
		LonDeg: lon * 180 / math.Pi,
		AltM:   alt,
	}
}

// Up returns the unit vector normal to the ellipsoid at the station.
func (s Station) Up() [3]float64 {
	cosLat := math.Cos(s.LatRad)
	return [3]float64{
		cosLat * math.Cos(s.LonRad),
		cosLat * math.Sin(s.LonRad),
		math.Sin(s.LatRad),
	}
}
