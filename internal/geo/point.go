// Package geo provides coordinate validation and great-circle distance models.
package geo

import (
	"fmt"
	"math"
)

// Coordinate bounds (degrees).
const (
	minLat = -90.0
	maxLat = 90.0
	minLon = -180.0
	maxLon = 180.0
)

// Point is a WGS-84 latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// String formats the point with five decimals, roughly one-metre precision.
func (p Point) String() string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lon)
}

// InvalidCoordinateError reports a point with a non-finite or out-of-range value.
type InvalidCoordinateError struct {
	Point  Point
	Reason string
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("geo: invalid coordinate (%v, %v): %s", e.Point.Lat, e.Point.Lon, e.Reason)
}

// ValidatePoint returns an *InvalidCoordinateError when p cannot be used
// for distance computation.
func ValidatePoint(p Point) error {
	switch {
	case math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0):
		return &InvalidCoordinateError{Point: p, Reason: "latitude is not finite"}
	case math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0):
		return &InvalidCoordinateError{Point: p, Reason: "longitude is not finite"}
	case p.Lat < minLat || p.Lat > maxLat:
		return &InvalidCoordinateError{Point: p, Reason: "latitude outside [-90, 90]"}
	case p.Lon < minLon || p.Lon > maxLon:
		return &InvalidCoordinateError{Point: p, Reason: "longitude outside [-180, 180]"}
	}
	return nil
}
