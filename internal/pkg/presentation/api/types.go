package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diwise/temple-finder/pkg/types"
)

type meta struct {
	TotalRecords uint64  `json:"totalRecords"`
	Offset       *uint64 `json:"offset,omitempty"`
	Limit        *uint64 `json:"limit,omitempty"`
	Count        uint64  `json:"count"`
}

type links struct {
	Self  *string `json:"self,omitempty"`
	First *string `json:"first,omitempty"`
	Prev  *string `json:"prev,omitempty"`
	Next  *string `json:"next,omitempty"`
	Last  *string `json:"last,omitempty"`
}

type ApiResponse struct {
	Meta  *meta  `json:"meta,omitempty"`
	Data  any    `json:"data"`
	Links *links `json:"links,omitempty"`
}

func (r ApiResponse) Byte() []byte {
	b, _ := json.Marshal(r)
	return b
}

type ApiError struct {
	Error string `json:"error"`
}

// newCollectionResponse wraps a page of results with paging metadata and links
// that keep the query parameters of the request.
func newCollectionResponse[T any](r *http.Request, c types.Collection[T]) ApiResponse {
	m, l := pagination(r, c.Count, c.Offset, c.Limit, c.TotalCount)
	return ApiResponse{
		Meta:  m,
		Data:  c.Data,
		Links: l,
	}
}

func pagination(r *http.Request, count, offset, limit, total uint64) (*meta, *links) {
	m := &meta{
		TotalRecords: total,
		Count:        count,
		Offset:       &offset,
		Limit:        &limit,
	}

	if limit == 0 {
		return m, nil
	}

	page := func(p uint64) *string {
		u := url.URL{Path: r.URL.Path}
		q := r.URL.Query()
		q.Set("page", strconv.FormatUint(p, 10))
		q.Set("limit", strconv.FormatUint(limit, 10))
		u.RawQuery = q.Encode()
		s := u.String()
		return &s
	}

	current := offset/limit + 1
	last := max((total+limit-1)/limit, 1)

	l := &links{
		Self:  page(current),
		First: page(1),
		Last:  page(last),
	}
	if current > 1 {
		l.Prev = page(current - 1)
	}
	if current < last {
		l.Next = page(current + 1)
	}

	return m, l
}

type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
	Meta     *meta            `json:"meta,omitempty"`
	Links    *links           `json:"links,omitempty"`
}

func NewFeatureCollection() *GeoJSONFeatureCollection {
	fc := &GeoJSONFeatureCollection{Type: "FeatureCollection", Features: []GeoJSONFeature{}}
	return fc
}

type GeoJSONFeature struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Geometry   any            `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// GeoJSONPoint is a point geometry with coordinates in longitude, latitude order.
type GeoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func NewGeoJSONPoint(longitude, latitude float64) GeoJSONPoint {
	return GeoJSONPoint{
		Type:        "Point",
		Coordinates: [2]float64{longitude, latitude},
	}
}

func NewFeatureCollectionWithTemples(temples []types.Temple) *GeoJSONFeatureCollection {
	fc := NewFeatureCollection()

	for _, t := range temples {
		fc.Features = append(fc.Features, ConvertTemple(t))
	}

	return fc
}

func ConvertTemple(t types.Temple) GeoJSONFeature {
	feature := GeoJSONFeature{
		ID:         t.ID,
		Type:       "Feature",
		Properties: map[string]any{},
	}

	if t.Location != nil {
		feature.Geometry = NewGeoJSONPoint(t.Location.Longitude, t.Location.Latitude)
	}

	b, err := json.Marshal(t)
	if err != nil {
		return feature
	}

	m := make(map[string]any)
	if err = json.Unmarshal(b, &m); err != nil {
		return feature
	}

	delete(m, "location")
	feature.Properties = m

	return feature
}

func writeCsvWithTemples(w io.Writer, temples []types.Temple) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := []string{"name", "deity", "category", "address", "locality", "city", "state", "latitude", "longitude", "description", "capacity", "featured", "tags"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, t := range temples {
		lat, lon := "", ""
		if t.Location != nil {
			lat = strconv.FormatFloat(t.Location.Latitude, 'f', -1, 64)
			lon = strconv.FormatFloat(t.Location.Longitude, 'f', -1, 64)
		}

		row := []string{
			t.Name,
			t.Deity,
			t.Category,
			t.Address,
			t.Locality,
			t.City,
			t.State,
			lat,
			lon,
			t.Description,
			fmt.Sprintf("%d", t.Capacity),
			fmt.Sprintf("%t", t.Featured),
			strings.Join(t.Tags, ","),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
