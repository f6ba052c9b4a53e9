package geo

import (
	"fmt"
	"math"
)

// Box is a latitude/longitude rectangle.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether p lies within the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}

// BoundingBox returns a box that contains every point within radiusKm of origin.
// It is meant as a cheap pre-filter (for instance in a database query) and must be
// followed by an exact distance check.
//
// When the box reaches a pole or would cross the antimeridian the longitude range
// is widened to [-180,180].
func BoundingBox(origin Point, radiusKm float64) (Box, error) {
	if err := origin.Validate(); err != nil {
		return Box{}, fmt.Errorf("origin: %w", err)
	}

	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm <= 0 {
		return Box{}, fmt.Errorf("%w: %v must be a positive number of kilometers", ErrInvalidRadius, radiusKm)
	}

	angular := radiusKm / EarthRadiusKm
	lat := degreesToRadians(origin.Latitude)
	lon := degreesToRadians(origin.Longitude)

	minLat := lat - angular
	maxLat := lat + angular

	if minLat <= -math.Pi/2 || maxLat >= math.Pi/2 || angular >= math.Pi/2 {
		return Box{
			MinLat: math.Max(radiansToDegrees(minLat), -90),
			MaxLat: math.Min(radiansToDegrees(maxLat), 90),
			MinLon: -180,
			MaxLon: 180,
		}, nil
	}

	deltaLon := math.Asin(math.Sin(angular) / math.Cos(lat))
	minLon := lon - deltaLon
	maxLon := lon + deltaLon

	box := Box{
		MinLat: radiansToDegrees(minLat),
		MaxLat: radiansToDegrees(maxLat),
		MinLon: radiansToDegrees(minLon),
		MaxLon: radiansToDegrees(maxLon),
	}

	if box.MinLon < -180 || box.MaxLon > 180 {
		box.MinLon = -180
		box.MaxLon = 180
	}

	return box, nil
}
