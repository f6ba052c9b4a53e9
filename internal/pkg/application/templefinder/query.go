package templefinder

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/diwise/temple-finder/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/temple-finder/pkg/geo"
	"github.com/diwise/temple-finder/pkg/types"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultNearby   = 10
)

// TempleQuery is the parsed form of the query parameters accepted when listing temples.
type TempleQuery struct {
	Search    string
	City      string
	State     string
	Category  string
	Deity     string
	Featured  *bool
	MinRating *float64

	Origin   *geo.Point
	RadiusKm float64

	SortBy     string
	Descending bool

	Page  int
	Limit int
}

func (q TempleQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

func invalidParameter(name, value, reason string) error {
	return fmt.Errorf("%w: %s=%q %s", ErrInvalidParameter, name, value, reason)
}

// ParseQuery validates and converts url query parameters. Malformed values are
// reported with ErrInvalidParameter rather than ignored.
func ParseQuery(params url.Values) (TempleQuery, error) {
	q := TempleQuery{
		Search:   strings.TrimSpace(params.Get("search")),
		City:     strings.TrimSpace(params.Get("city")),
		State:    strings.TrimSpace(params.Get("state")),
		Deity:    strings.TrimSpace(params.Get("deity")),
		RadiusKm: geo.SearchRadiusKm,
		Page:     1,
		Limit:    DefaultPageSize,
	}

	var err error

	if category := strings.TrimSpace(params.Get("category")); category != "" {
		idx := slices.IndexFunc(types.Categories, func(c string) bool { return strings.EqualFold(c, category) })
		if idx < 0 {
			return TempleQuery{}, invalidParameter("category", category, "is not a known category")
		}
		q.Category = types.Categories[idx]
	}

	if featured := params.Get("featured"); featured != "" {
		f, err := strconv.ParseBool(featured)
		if err != nil {
			return TempleQuery{}, invalidParameter("featured", featured, "must be true or false")
		}
		q.Featured = &f
	}

	if minRating := params.Get("minRating"); minRating != "" {
		r, err := strconv.ParseFloat(minRating, 64)
		if err != nil || math.IsNaN(r) || r < 0 || r > 5 {
			return TempleQuery{}, invalidParameter("minRating", minRating, "must be a number between 0 and 5")
		}
		q.MinRating = &r
	}

	if q.Page, err = positiveInt(params, "page", 1, math.MaxInt32); err != nil {
		return TempleQuery{}, err
	}
	if q.Limit, err = positiveInt(params, "limit", DefaultPageSize, MaxPageSize); err != nil {
		return TempleQuery{}, err
	}

	origin, err := ParseOrigin(params)
	if err != nil {
		return TempleQuery{}, err
	}
	q.Origin = origin

	if radius := params.Get("radius"); radius != "" {
		if q.Origin == nil {
			return TempleQuery{}, invalidParameter("radius", radius, "requires lat and lng")
		}
		if q.RadiusKm, err = ParseRadius(radius); err != nil {
			return TempleQuery{}, err
		}
	}

	q.SortBy = params.Get("sortBy")
	switch {
	case q.SortBy == "" && q.Origin != nil:
		q.SortBy = "distance"
	case q.SortBy == "":
		q.SortBy = "name"
	case q.SortBy == "distance" && q.Origin == nil:
		return TempleQuery{}, invalidParameter("sortBy", q.SortBy, "requires lat and lng")
	case q.SortBy != "distance" && !database.IsSortableColumn(q.SortBy):
		return TempleQuery{}, invalidParameter("sortBy", q.SortBy, "is not a sortable field")
	}

	switch order := strings.ToLower(params.Get("sortOrder")); order {
	case "", "asc":
	case "desc":
		q.Descending = true
	default:
		return TempleQuery{}, invalidParameter("sortOrder", order, "must be asc or desc")
	}

	return q, nil
}

func positiveInt(params url.Values, name string, defaultValue, max int) (int, error) {
	value := params.Get(name)
	if value == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, invalidParameter(name, value, "must be a positive integer")
	}

	if n > max {
		return max, nil
	}

	return n, nil
}

// ParseOrigin returns nil when neither lat nor lng is given. Giving only one of
// them is an error.
func ParseOrigin(params url.Values) (*geo.Point, error) {
	lat, lng := params.Get("lat"), params.Get("lng")
	if lat == "" && lng == "" {
		return nil, nil
	}
	if lat == "" || lng == "" {
		return nil, fmt.Errorf("%w: lat and lng must be given together", ErrInvalidParameter)
	}

	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, invalidParameter("lat", lat, "is not a number")
	}
	longitude, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, invalidParameter("lng", lng, "is not a number")
	}

	p, err := geo.NewPoint(latitude, longitude)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameter, err.Error())
	}

	return &p, nil
}

func ParseRadius(radius string) (float64, error) {
	r, err := strconv.ParseFloat(radius, 64)
	if err != nil || math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return 0, invalidParameter("radius", radius, "must be a positive number of kilometers")
	}
	return r, nil
}

func ParseLimit(limit string, defaultValue int) (int, error) {
	if limit == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(limit)
	if err != nil || n < 1 {
		return 0, invalidParameter("limit", limit, "must be a positive integer")
	}
	return min(n, MaxPageSize), nil
}

func (q TempleQuery) conditions() []database.ConditionFunc {
	conditions := []database.ConditionFunc{}

	if q.Search != "" {
		conditions = append(conditions, database.WithSearch(q.Search))
	}
	if q.City != "" {
		conditions = append(conditions, database.WithCity(q.City))
	}
	if q.State != "" {
		conditions = append(conditions, database.WithState(q.State))
	}
	if q.Category != "" {
		conditions = append(conditions, database.WithCategory(q.Category))
	}
	if q.Deity != "" {
		conditions = append(conditions, database.WithDeity(q.Deity))
	}
	if q.Featured != nil {
		conditions = append(conditions, database.WithFeatured(*q.Featured))
	}
	if q.MinRating != nil {
		conditions = append(conditions, database.WithMinRating(*q.MinRating))
	}

	return conditions
}
