package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrInvalidRadius = errors.New("invalid search radius")
	ErrInvalidLimit  = errors.New("invalid result limit")
)

// Candidate is a point of interest that may be returned by FindNearby.
type Candidate[T any] struct {
	ID      string
	Point   Point
	Payload T
}

// Result is a candidate that was found within the search radius.
type Result[T any] struct {
	ID         string
	DistanceKm float64
	Payload    T
}

// FindNearby returns the candidates within radiusKm of origin ordered by increasing
// distance. Candidates at equal distance keep their input order. A limit of zero
// returns every match, a positive limit caps the number of results.
//
// Every point is validated before any distance is computed and a single invalid
// point fails the whole call.
func FindNearby[T any](origin Point, candidates []Candidate[T], radiusKm float64, limit int) ([]Result[T], error) {
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}

	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm <= 0 {
		return nil, fmt.Errorf("%w: %v must be a positive number of kilometers", ErrInvalidRadius, radiusKm)
	}

	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	for i, c := range candidates {
		if err := c.Point.Validate(); err != nil {
			return nil, fmt.Errorf("candidate %q at index %d: %w", c.ID, i, err)
		}
	}

	results := make([]Result[T], 0)

	for _, c := range candidates {
		d := Distance(origin, c.Point)
		if d <= radiusKm {
			results = append(results, Result[T]{
				ID:         c.ID,
				DistanceKm: d,
				Payload:    c.Payload,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}
