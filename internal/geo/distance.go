package geo

import (
	"math"
	"strings"

	"github.com/jftuga/geodist"
	"github.com/rotisserie/eris"
)

// Distance model names accepted by NewDistanceModel.
const (
	ModelGeodesic  = "geodesic"
	ModelHaversine = "haversine"
)

// MeanEarthRadiusKM is the IUGG mean Earth radius used by the haversine model.
const MeanEarthRadiusKM = 6371.0

// DistanceModel computes the great-circle distance in kilometers between two points.
// Implementations must return exactly 0 for identical points and be symmetric.
type DistanceModel interface {
	Name() string
	Distance(a, b Point) (float64, error)
}

// NewDistanceModel returns the strategy registered under name. earthRadiusKM
// only affects the haversine model; values <= 0 fall back to MeanEarthRadiusKM.
func NewDistanceModel(name string, earthRadiusKM float64) (DistanceModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ModelGeodesic, "":
		return Geodesic{}, nil
	case ModelHaversine:
		return NewHaversine(earthRadiusKM), nil
	default:
		return nil, eris.Errorf("geo: unknown distance model %q (want %s or %s)", name, ModelGeodesic, ModelHaversine)
	}
}

// Haversine is a spherical-earth distance model.
type Haversine struct {
	RadiusKM float64
}

// NewHaversine creates a Haversine model. A non-positive radius uses MeanEarthRadiusKM.
func NewHaversine(radiusKM float64) Haversine {
	if radiusKM <= 0 || math.IsNaN(radiusKM) || math.IsInf(radiusKM, 0) {
		radiusKM = MeanEarthRadiusKM
	}
	return Haversine{RadiusKM: radiusKM}
}

// Name implements DistanceModel.
func (Haversine) Name() string { return ModelHaversine }

// Distance implements DistanceModel.
func (h Haversine) Distance(a, b Point) (float64, error) {
	if err := validatePair(a, b); err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}

	r := h.RadiusKM
	if r <= 0 {
		r = MeanEarthRadiusKM
	}

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	x := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Rounding can push x marginally past 1 for antipodal points.
	x = math.Min(1, math.Max(0, x))

	return 2 * r * math.Asin(math.Sqrt(x)), nil
}

// Geodesic is an ellipsoidal (WGS-84) distance model using Vincenty's inverse formula.
type Geodesic struct{}

// Name implements DistanceModel.
func (Geodesic) Name() string { return ModelGeodesic }

// Distance implements DistanceModel. Vincenty's iteration does not converge
// for nearly antipodal points; those fall back to the mean-sphere haversine
// distance.
func (Geodesic) Distance(a, b Point) (float64, error) {
	if err := validatePair(a, b); err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}

	// Order the endpoints so the iteration sees the same inputs either way round.
	p1, p2 := a, b
	if p2.Lat < p1.Lat || (p2.Lat == p1.Lat && p2.Lon < p1.Lon) {
		p1, p2 = p2, p1
	}

	_, km, err := geodist.VincentyDistance(
		geodist.Coord{Lat: p1.Lat, Lon: p1.Lon},
		geodist.Coord{Lat: p2.Lat, Lon: p2.Lon},
	)
	if err != nil {
		return NewHaversine(MeanEarthRadiusKM).Distance(p1, p2)
	}
	return km, nil
}

func validatePair(a, b Point) error {
	if err := ValidatePoint(a); err != nil {
		return err
	}
	return ValidatePoint(b)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
