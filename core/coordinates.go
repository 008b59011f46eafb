package core

import (
	"math"
)

// Geographic represents a direction on the unit sphere in geographic coordinates
type Geographic struct {
	Lat float64 // Latitude in radians [-π/2, π/2], positive = north
	Lon float64 // Longitude in radians [-π, π], positive = east
}

// Cartesian axes: origin at planet center, Y points to the north pole,
// X to 0° longitude at the equator and Z to 90° longitude.

// DegreesToRadians converts degrees to radians
func DegreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// RadiansToDegrees converts radians to degrees
func RadiansToDegrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// GeographicToCartesian converts geographic coordinates to a point at the given radius
func GeographicToCartesian(g Geographic, radius float64) Vector3 {
	cosLat := math.Cos(g.Lat)
	return Vector3{
		X: radius * cosLat * math.Cos(g.Lon),
		Y: radius * math.Sin(g.Lat),
		Z: radius * cosLat * math.Sin(g.Lon),
	}
}

// CartesianToGeographic converts a point to geographic coordinates.
// The origin maps to (0, 0).
func CartesianToGeographic(c Vector3) Geographic {
	r := c.Length()
	if r < 1e-12 {
		return Geographic{}
	}
	return Geographic{
		Lat: math.Asin(math.Max(-1, math.Min(1, c.Y/r))),
		Lon: math.Atan2(c.Z, c.X),
	}
}

// ValidateCoordinates checks if coordinates are within valid ranges
func ValidateCoordinates(g Geographic) bool {
	return g.Lat >= -math.Pi/2 && g.Lat <= math.Pi/2 &&
		g.Lon >= -math.Pi && g.Lon <= math.Pi
}

// NormalizeCoordinates clamps latitude and wraps longitude into range
func NormalizeCoordinates(g Geographic) Geographic {
	if g.Lat > math.Pi/2 {
		g.Lat = math.Pi / 2
	} else if g.Lat < -math.Pi/2 {
		g.Lat = -math.Pi / 2
	}

	for g.Lon > math.Pi {
		g.Lon -= 2 * math.Pi
	}
	for g.Lon < -math.Pi {
		g.Lon += 2 * math.Pi
	}

	return g
}

// WrapAngle maps an angle difference into (-π, π].
func WrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// GeographicVelocity represents a displacement in the local geographic frame
type GeographicVelocity struct {
	VNorth float64
	VEast  float64
}

// GeographicVelocityToCartesian converts a local north/east vector at pos
// into the Cartesian frame
func GeographicVelocityToCartesian(vel GeographicVelocity, pos Geographic) Vector3 {
	sinLat := math.Sin(pos.Lat)
	cosLat := math.Cos(pos.Lat)
	sinLon := math.Sin(pos.Lon)
	cosLon := math.Cos(pos.Lon)

	return Vector3{
		X: -sinLat*cosLon*vel.VNorth - sinLon*vel.VEast,
		Y: cosLat * vel.VNorth,
		Z: -sinLat*sinLon*vel.VNorth + cosLon*vel.VEast,
	}
}
