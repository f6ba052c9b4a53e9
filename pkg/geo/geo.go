// Package geo provides great-circle distance calculations and proximity filtering
// of geographic points.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean radius of the Earth used by the haversine formula.
const EarthRadiusKm = 6371.0

// Default search radii used by the different discovery flows.
const (
	NearbyRadiusKm  = 15.0
	SearchRadiusKm  = 50.0
	ExploreRadiusKm = 200.0
)

var ErrInvalidPoint = errors.New("invalid geographic point")

// Point is a latitude/longitude pair in decimal degrees. Points are passed and
// stored by value and no function in this package modifies them.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPoint returns a validated Point.
func NewPoint(lat, lon float64) (Point, error) {
	p := Point{Latitude: lat, Longitude: lon}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate reports whether the point has finite coordinates within
// [-90,90] latitude and [-180,180] longitude.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return fmt.Errorf("%w: latitude %v is not a finite number", ErrInvalidPoint, p.Latitude)
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("%w: longitude %v is not a finite number", ErrInvalidPoint, p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v is outside [-90,90]", ErrInvalidPoint, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v is outside [-180,180]", ErrInvalidPoint, p.Longitude)
	}
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Latitude, p.Longitude)
}

// Distance computes the great-circle distance between a and b in kilometers
// using the haversine formula. The points are assumed to be valid.
func Distance(a, b Point) float64 {
	lat1 := degreesToRadians(a.Latitude)
	lat2 := degreesToRadians(b.Latitude)
	deltaLat := degreesToRadians(b.Latitude - a.Latitude)
	deltaLon := degreesToRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(h, 1)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

func radiansToDegrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}
