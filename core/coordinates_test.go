package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeographicToCartesian(t *testing.T) {
	tests := []struct {
		name  string
		lat   float64 // degrees
		lon   float64 // degrees
		r     float64
		wantX float64
		wantY float64
		wantZ float64
	}{
		{name: "North Pole", lat: 90, lon: 0, r: 6371000, wantY: 6371000},
		{name: "South Pole", lat: -90, lon: 0, r: 6371000, wantY: -6371000},
		{name: "Equator Prime Meridian", lat: 0, lon: 0, r: 6371000, wantX: 6371000},
		{name: "Equator 90E", lat: 0, lon: 90, r: 6371000, wantZ: 6371000},
		{name: "45N 45E", lat: 45, lon: 45, r: 6371000, wantX: 3185500, wantY: 4504977, wantZ: 3185500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := GeographicToCartesian(Geographic{Lat: DegreesToRadians(tc.lat), Lon: DegreesToRadians(tc.lon)}, tc.r)
			assert.InDelta(t, tc.wantX, got.X, 1.0)
			assert.InDelta(t, tc.wantY, got.Y, 1.0)
			assert.InDelta(t, tc.wantZ, got.Z, 1.0)
		})
	}
}

func TestCartesianRoundTrip(t *testing.T) {
	for lat := -80.0; lat <= 80.0; lat += 20 {
		for lon := -170.0; lon <= 170.0; lon += 34 {
			g := Geographic{Lat: DegreesToRadians(lat), Lon: DegreesToRadians(lon)}
			back := CartesianToGeographic(GeographicToCartesian(g, 3.5))
			assert.InDelta(t, g.Lat, back.Lat, 1e-12)
			assert.InDelta(t, g.Lon, back.Lon, 1e-12)
		}
	}
	assert.Equal(t, Geographic{}, CartesianToGeographic(Vector3{}))
}

func TestNormalizeCoordinates(t *testing.T) {
	g := NormalizeCoordinates(Geographic{Lat: 2, Lon: 3*math.Pi/2})
	assert.Equal(t, math.Pi/2, g.Lat)
	assert.InDelta(t, -math.Pi/2, g.Lon, 1e-12)
	assert.True(t, ValidateCoordinates(g))
	assert.False(t, ValidateCoordinates(Geographic{Lat: 2}))
}

func TestWrapAngle(t *testing.T) {
	assert.InDelta(t, -0.5, WrapAngle(2*math.Pi-0.5), 1e-12)
	assert.InDelta(t, math.Pi, WrapAngle(-math.Pi), 1e-12)
	assert.InDelta(t, 0.25, WrapAngle(0.25), 1e-12)
}

func TestRotateAround(t *testing.T) {
	v := RotateAround(Vector3{1, 0, 0}, Vector3{0, 1, 0}, math.Pi/2)
	assert.InDelta(t, 0.0, v.X, 1e-12)
	assert.InDelta(t, -1.0, v.Z, 1e-12)

	same := RotateAround(Vector3{1, 2, 3}, Vector3{}, 1)
	assert.Equal(t, Vector3{1, 2, 3}, same)
}

func TestRotationBetween(t *testing.T) {
	from := Vector3{1, 0, 0}
	to := Vector3{0, 0.6, 0.8}
	axis, angle := RotationBetween(from, to)
	got := RotateAround(from, axis, angle)
	assert.InDelta(t, to.X, got.X, 1e-12)
	assert.InDelta(t, to.Y, got.Y, 1e-12)
	assert.InDelta(t, to.Z, got.Z, 1e-12)

	_, angle = RotationBetween(from, from)
	assert.Zero(t, angle)

	axis, angle = RotationBetween(from, Vector3{-1, 0, 0})
	assert.InDelta(t, math.Pi, angle, 1e-12)
	assert.InDelta(t, 1.0, axis.Length(), 1e-12)
}

func TestArcDistance(t *testing.T) {
	assert.InDelta(t, math.Pi/2, ArcDistance(Vector3{1, 0, 0}, Vector3{0, 2, 0}), 1e-12)
	assert.InDelta(t, 0.0, ArcDistance(Vector3{0, 0, 1}, Vector3{0, 0, 1}), 1e-12)
}

func TestGeographicVelocityToCartesian(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64 // degrees
		vel      GeographicVelocity
		want     Vector3
	}{
		{"Northward at equator", 0, 0, GeographicVelocity{VNorth: 10}, Vector3{Y: 10}},
		{"Eastward at equator", 0, 0, GeographicVelocity{VEast: 10}, Vector3{Z: 10}},
		{"Eastward at 90E", 0, 90, GeographicVelocity{VEast: 10}, Vector3{X: -10}},
		{"Northward at north pole", 90, 0, GeographicVelocity{VNorth: 1}, Vector3{X: -1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos := Geographic{Lat: DegreesToRadians(tc.lat), Lon: DegreesToRadians(tc.lon)}
			got := GeographicVelocityToCartesian(tc.vel, pos)
			assert.InDelta(t, tc.want.X, got.X, 1e-9)
			assert.InDelta(t, tc.want.Y, got.Y, 1e-9)
			assert.InDelta(t, tc.want.Z, got.Z, 1e-9)

			surface := GeographicToCartesian(pos, 1)
			assert.InDelta(t, 0, got.Dot(surface), 1e-9, "tangent to the sphere")
		})
	}
}
