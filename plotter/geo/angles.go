// Package geo provides geodesic functions and constants used on the chart.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/StefanSchroeder/Golang-Ellipsoid/ellipsoid"
)

const (
	DegreeToRadian = math.Pi / 180
	RadianToDegree = 1.0 / DegreeToRadian

	Longitude_Min = -180
	Longitude_Max = 180
	Latitude_Min  = -90
	Latitude_Max  = 90
)

var (
	// Globe measures in degrees and meters; bearings are 0..360 clockwise from north.
	Globe = ellipsoid.Init(
		"WGS84",
		ellipsoid.Degrees,
		ellipsoid.Meter,
		ellipsoid.LongitudeIsSymmetric,
		ellipsoid.BearingNotSymmetric)

	ErrOutOfBounds = errors.New("coordinate out of bounds")
)

// LatLon is a position in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p LatLon) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Valid reports whether p is finite and in range.
func (p LatLon) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= Latitude_Min && p.Lat <= Latitude_Max && p.Lon >= Longitude_Min && p.Lon <= Longitude_Max
}

// Distance is the geodesic distance in meters.
func Distance(a, b LatLon) float64 {
	if a == b {
		return 0
	}
	d, _ := Globe.To(a.Lat, a.Lon, b.Lat, b.Lon)
	return d
}

// Bearing is the initial bearing in degrees [0, 360) from a to b.
func Bearing(a, b LatLon) float64 {
	if a == b {
		return 0
	}
	_, brg := Globe.To(a.Lat, a.Lon, b.Lat, b.Lon)
	return math.Mod(brg+360, 360)
}

// Destination projects p by meters along bearing (degrees).
func Destination(p LatLon, meters, bearing float64) LatLon {
	if meters == 0 {
		return p
	}
	lat, lon := Globe.At(p.Lat, p.Lon, meters, math.Mod(bearing+360, 360))
	return LatLon{Lat: lat, Lon: lon}
}

// PathLength sums the distances between consecutive points.
func PathLength(points []LatLon) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}
