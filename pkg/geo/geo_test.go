package geo

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/matryer/is"
)

var (
	chennai    = Point{Latitude: 13.0827, Longitude: 80.2707}
	mylapore   = Point{Latitude: 13.0339, Longitude: 80.2620}
	triplicane = Point{Latitude: 13.0567, Longitude: 80.2778}
	delhi      = Point{Latitude: 28.6139, Longitude: 77.2090}
	mumbai     = Point{Latitude: 19.0176, Longitude: 72.8562}
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		from, to Point
		min, max float64
	}{
		{"same point in Chennai", chennai, chennai, 0, 0.0001},
		{"Mylapore to Triplicane", mylapore, triplicane, 3.0, 3.5},
		{"Delhi to Mumbai", delhi, mumbai, 1150, 1160},
		{"antipodal points", Point{0, 0}, Point{0, 180}, 20015, 20016},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			d := Distance(tt.from, tt.to)
			is.True(d >= tt.min && d <= tt.max) // distance outside expected range
		})
	}
}

func TestDistanceProperties(t *testing.T) {
	is := is.New(t)
	points := randomPoints(rand.New(rand.NewSource(42)), 50)

	for _, a := range points {
		is.Equal(Distance(a, a), 0.0)

		for _, b := range points {
			ab := Distance(a, b)
			is.True(ab >= 0)
			is.True(math.Abs(ab-Distance(b, a)) < 1e-9) // distance is not symmetric

			for _, c := range points[:10] {
				is.True(Distance(a, c) <= ab+Distance(b, c)+1e-6) // triangle inequality violated
			}
		}
	}
}

func TestFindNearbyFiltersAndOrdersByDistance(t *testing.T) {
	is := is.New(t)

	origin := Point{Latitude: 0, Longitude: 0}
	candidates := []Candidate[string]{
		{ID: "C", Point: pointAtKm(20), Payload: "c"},
		{ID: "B", Point: pointAtKm(8), Payload: "b"},
		{ID: "A", Point: pointAtKm(2), Payload: "a"},
	}

	result, err := FindNearby(origin, candidates, NearbyRadiusKm, 0)
	is.NoErr(err)
	is.Equal(len(result), 2)
	is.Equal(result[0].ID, "A")
	is.Equal(result[1].ID, "B")
	is.Equal(result[1].Payload, "b")
	is.True(math.Abs(result[0].DistanceKm-2) < 0.01)
}

func TestFindNearbyRespectsLimit(t *testing.T) {
	is := is.New(t)

	candidates := []Candidate[int]{
		{ID: "B", Point: pointAtKm(8)},
		{ID: "A", Point: pointAtKm(2)},
	}

	result, err := FindNearby(Point{}, candidates, 15, 1)
	is.NoErr(err)
	is.Equal(len(result), 1)
	is.Equal(result[0].ID, "A")
}

func TestFindNearbyKeepsInputOrderForEqualDistances(t *testing.T) {
	is := is.New(t)

	p := pointAtKm(5)
	candidates := []Candidate[struct{}]{
		{ID: "first", Point: p},
		{ID: "second", Point: p},
		{ID: "third", Point: p},
	}

	result, err := FindNearby(Point{}, candidates, 10, 0)
	is.NoErr(err)
	is.Equal(result[0].ID, "first")
	is.Equal(result[1].ID, "second")
	is.Equal(result[2].ID, "third")
}

func TestFindNearbyWithNoCandidates(t *testing.T) {
	is := is.New(t)

	result, err := FindNearby[string](chennai, nil, 15, 0)
	is.NoErr(err)
	is.True(result != nil)
	is.Equal(len(result), 0)

	result, err = FindNearby(chennai, []Candidate[string]{{ID: "delhi", Point: delhi}}, 15, 0)
	is.NoErr(err)
	is.Equal(len(result), 0)
}

func TestFindNearbyRejectsInvalidOrigin(t *testing.T) {
	is := is.New(t)

	_, err := FindNearby(Point{Latitude: 91, Longitude: 0}, []Candidate[string]{{ID: "x", Point: chennai}}, 15, 0)
	is.True(errors.Is(err, ErrInvalidPoint))
	is.True(strings.HasPrefix(err.Error(), "origin"))
}

func TestFindNearbyRejectsInvalidCandidate(t *testing.T) {
	is := is.New(t)

	candidates := []Candidate[string]{
		{ID: "ok", Point: chennai},
		{ID: "broken", Point: Point{Latitude: math.NaN(), Longitude: 80}},
	}

	_, err := FindNearby(chennai, candidates, 15, 0)
	is.True(errors.Is(err, ErrInvalidPoint))
	is.True(strings.Contains(err.Error(), `"broken" at index 1`))

	candidates[1].Point = Point{Latitude: 13, Longitude: -181}
	_, err = FindNearby(chennai, candidates, 15, 0)
	is.True(errors.Is(err, ErrInvalidPoint))
}

func TestFindNearbyRejectsInvalidRadiusAndLimit(t *testing.T) {
	is := is.New(t)

	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := FindNearby[string](chennai, nil, r, 0)
		is.True(errors.Is(err, ErrInvalidRadius))
	}

	_, err := FindNearby[string](chennai, nil, 15, -1)
	is.True(errors.Is(err, ErrInvalidLimit))
}

func TestFindNearbyProperties(t *testing.T) {
	is := is.New(t)
	rnd := rand.New(rand.NewSource(7))

	origin := Point{Latitude: 20, Longitude: 78}
	candidates := make([]Candidate[int], 0, 200)
	for i, p := range randomPointsAround(rnd, origin, 200, 5) {
		candidates = append(candidates, Candidate[int]{ID: string(rune('a' + i%26)), Point: p, Payload: i})
	}

	previous := map[int]bool{}
	for _, radius := range []float64{10, 50, 100, 200, 400, 800} {
		result, err := FindNearby(origin, candidates, radius, 0)
		is.NoErr(err)

		current := map[int]bool{}
		for i, r := range result {
			current[r.Payload] = true
			is.True(r.DistanceKm <= radius)
			if i > 0 {
				is.True(result[i-1].DistanceKm <= r.DistanceKm) // results out of order
			}
		}

		for payload := range previous {
			is.True(current[payload]) // growing the radius dropped a candidate
		}
		previous = current

		for _, limit := range []int{1, 3, 1000} {
			limited, err := FindNearby(origin, candidates, radius, limit)
			is.NoErr(err)
			is.Equal(len(limited), min(len(result), limit))
		}
	}
}

func TestBoundingBoxContainsEveryPointWithinRadius(t *testing.T) {
	is := is.New(t)
	rnd := rand.New(rand.NewSource(3))

	origins := []Point{chennai, delhi, {Latitude: 70, Longitude: 20}, {Latitude: -45, Longitude: 170}, {Latitude: 0, Longitude: -179.9}}

	for _, origin := range origins {
		for _, radius := range []float64{1, 15, 50, 200} {
			box, err := BoundingBox(origin, radius)
			is.NoErr(err)

			for _, p := range randomPointsAround(rnd, origin, 500, radius/100) {
				if Distance(origin, p) <= radius {
					is.True(box.Contains(p)) // point within radius is outside the bounding box
				}
			}
		}
	}
}

func TestBoundingBoxWidensNearThePoles(t *testing.T) {
	is := is.New(t)

	box, err := BoundingBox(Point{Latitude: 89.99, Longitude: 10}, 50)
	is.NoErr(err)
	is.Equal(box.MinLon, -180.0)
	is.Equal(box.MaxLon, 180.0)
	is.Equal(box.MaxLat, 90.0)

	_, err = BoundingBox(Point{Latitude: -91}, 50)
	is.True(errors.Is(err, ErrInvalidPoint))

	_, err = BoundingBox(chennai, 0)
	is.True(errors.Is(err, ErrInvalidRadius))
}

func TestNewPoint(t *testing.T) {
	is := is.New(t)

	p, err := NewPoint(13.0827, 80.2707)
	is.NoErr(err)
	is.Equal(p, chennai)

	_, err = NewPoint(91, 0)
	is.True(errors.Is(err, ErrInvalidPoint))

	_, err = NewPoint(0, math.Inf(-1))
	is.True(errors.Is(err, ErrInvalidPoint))
}

// pointAtKm returns a point on the equator d kilometers east of (0,0).
func pointAtKm(d float64) Point {
	return Point{Latitude: 0, Longitude: radiansToDegrees(d / EarthRadiusKm)}
}

func randomPoints(rnd *rand.Rand, n int) []Point {
	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, Point{
			Latitude:  rnd.Float64()*180 - 90,
			Longitude: rnd.Float64()*360 - 180,
		})
	}
	return points
}

func randomPointsAround(rnd *rand.Rand, origin Point, n int, spread float64) []Point {
	points := make([]Point, 0, n)
	for len(points) < n {
		p := Point{
			Latitude:  origin.Latitude + (rnd.Float64()*2-1)*spread,
			Longitude: origin.Longitude + (rnd.Float64()*2-1)*spread,
		}
		if p.Validate() == nil {
			points = append(points, p)
		}
	}
	return points
}
