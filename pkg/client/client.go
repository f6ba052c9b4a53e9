package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temple-finder/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2"
)

var ErrNotFound = errors.New("not found")
var ErrUnauthorized = errors.New("unauthorized")

type TempleFinderClient interface {
	FindNearby(ctx context.Context, latitude, longitude, radiusKm float64, limit int) ([]types.Temple, error)
	GetTemple(ctx context.Context, templeID string) (types.Temple, error)
	AddReview(ctx context.Context, templeID string, rating int, comment string) (types.Review, error)
}

type templeFinderClient struct {
	url        string
	httpClient http.Client
}

var tracer = otel.Tracer("temple-finder-client")

// New returns an anonymous client. Operations that need a signed in user fail
// with ErrUnauthorized.
func New(ctx context.Context, templeFinderURL string) TempleFinderClient {
	return &templeFinderClient{
		url: strings.TrimSuffix(templeFinderURL, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// NewWithCredentials returns a client that signs in with email and password
// and attaches the resulting bearer token to every request. The token is
// reused until it is about to expire.
func NewWithCredentials(ctx context.Context, templeFinderURL, email, password string) TempleFinderClient {
	c := &templeFinderClient{
		url: strings.TrimSuffix(templeFinderURL, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	src := &loginTokenSource{
		ctx:      ctx,
		url:      c.url + "/api/v1/auth/login",
		email:    email,
		password: password,
		client:   c.httpClient,
	}

	c.httpClient = http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, src),
			Base:   otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	return c
}

func (c *templeFinderClient) FindNearby(ctx context.Context, latitude, longitude, radiusKm float64, limit int) ([]types.Temple, error) {
	var err error
	ctx, span := tracer.Start(ctx, "find-nearby-temples")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)
	log.Debug(fmt.Sprintf("looking for temples within %.1f km of %f,%f", radiusKm, latitude, longitude))

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(longitude, 'f', -1, 64))
	if radiusKm > 0 {
		params.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	temples := []types.Temple{}
	err = c.do(ctx, http.MethodGet, "/api/v1/temples/nearby?"+params.Encode(), nil, http.StatusOK, &temples)

	return temples, err
}

func (c *templeFinderClient) GetTemple(ctx context.Context, templeID string) (types.Temple, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-temple")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	temple := types.Temple{}
	err = c.do(ctx, http.MethodGet, "/api/v1/temples/"+url.PathEscape(templeID), nil, http.StatusOK, &temple)

	return temple, err
}

func (c *templeFinderClient) AddReview(ctx context.Context, templeID string, rating int, comment string) (types.Review, error) {
	var err error
	ctx, span := tracer.Start(ctx, "add-review")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := json.Marshal(types.Review{Rating: rating, Comment: comment})
	if err != nil {
		return types.Review{}, err
	}

	review := types.Review{}
	err = c.do(ctx, http.MethodPost, "/api/v1/temples/"+url.PathEscape(templeID)+"/reviews", body, http.StatusCreated, &review)

	return review, err
}

func (c *templeFinderClient) do(ctx context.Context, method, path string, body []byte, expected int, data any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, expected, data)
}

func decodeResponse(resp *http.Response, expected int, data any) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expected {
		apiErr := struct {
			Error string `json:"error"`
		}{}
		json.Unmarshal(respBody, &apiErr)

		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Error)
		}
		return fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, apiErr.Error)
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: data}

	if err = json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return nil
}

// loginTokenSource exchanges user credentials for a bearer token
type loginTokenSource struct {
	ctx      context.Context
	url      string
	email    string
	password string
	client   http.Client
}

func (s *loginTokenSource) Token() (*oauth2.Token, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    s.email,
		"password": s.password,
	})

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	defer resp.Body.Close()

	login := struct {
		Token string `json:"token"`
	}{}

	if err = decodeResponse(resp, http.StatusOK, &login); err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: login.Token,
		TokenType:   "Bearer",
		Expiry:      expiryOf(login.Token),
	}, nil
}

// expiryOf reads the exp claim without verifying the signature. A zero time
// makes the token valid until the server rejects it.
func expiryOf(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}
	}

	claims := struct {
		Exp int64 `json:"exp"`
	}{}
	if json.Unmarshal(payload, &claims) != nil || claims.Exp == 0 {
		return time.Time{}
	}

	return time.Unix(claims.Exp, 0)
}
