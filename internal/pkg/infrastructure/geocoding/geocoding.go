package geocoding

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temple-finder/pkg/geo"
	"googlemaps.github.io/maps"
)

//go:generate moq -rm -out geocoding_mock.go . Geocoder

type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

var (
	ErrEmptyResponse = errors.New("empty response from geocoding api")
	ErrNotConfigured = errors.New("geocoding is not configured")
)

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

type GoogleProvider struct {
	client GoogleAPIClient
	region string
}

func NewGoogleProvider(client GoogleAPIClient, region string) *GoogleProvider {
	return &GoogleProvider{client: client, region: region}
}

// New returns a geocoder backed by the Google Maps API, or one that always fails
// with ErrNotConfigured when apiKey is empty.
func New(apiKey string, rateLimit int) (Geocoder, error) {
	if apiKey == "" {
		return disabled{}, nil
	}

	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if rateLimit > 0 {
		opts = append(opts, maps.WithRateLimit(rateLimit))
	}

	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google maps client: %w", err)
	}

	return NewGoogleProvider(client, "in"), nil
}

func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (geo.Point, error) {
	logging.GetFromContext(ctx).Debug("geocoding address", "address", address)

	results, err := gp.client.Geocode(ctx, &maps.GeocodingRequest{Address: address, Region: gp.region})
	if err != nil {
		return geo.Point{}, fmt.Errorf("failed to geocode address: %w", err)
	}

	if len(results) == 0 {
		return geo.Point{}, ErrEmptyResponse
	}

	location := results[0].Geometry.Location
	return geo.NewPoint(location.Lat, location.Lng)
}

type disabled struct{}

func (disabled) Geocode(context.Context, string) (geo.Point, error) {
	return geo.Point{}, ErrNotConfigured
}
