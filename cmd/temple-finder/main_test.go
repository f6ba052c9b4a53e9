package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/matryer/is"
)

func TestSetup(t *testing.T) {
	is, app := setupTest(t)
	server := httptest.NewServer(app.public)
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/health", nil)

	is.Equal(resp.StatusCode, http.StatusNoContent)
}

func TestThatGetUnknownTempleReturns404(t *testing.T) {
	is, app := setupTest(t)
	server := httptest.NewServer(app.public)
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/api/v1/temples/nosuchtemple", nil)

	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestThatGetKnownTempleReturns200(t *testing.T) {
	is, app := setupTest(t)
	server := httptest.NewServer(app.public)
	defer server.Close()

	resp, body := testRequest(is, server, http.MethodGet, "/api/v1/temples?search=Kapaleeshwarar", nil)
	is.Equal(resp.StatusCode, http.StatusOK)

	page := struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}{}
	is.NoErr(json.Unmarshal([]byte(body), &page))
	is.Equal(len(page.Data), 1)

	resp, body = testRequest(is, server, http.MethodGet, "/api/v1/temples/"+page.Data[0].ID, nil)

	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, `"name":"Kapaleeshwarar Temple"`))
}

func TestThatNearbyRequiresCoordinates(t *testing.T) {
	is, app := setupTest(t)
	server := httptest.NewServer(app.public)
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/api/v1/temples/nearby?lat=13.05", nil)
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	resp, body := testRequest(is, server, http.MethodGet, "/api/v1/temples/nearby?lat=13.05&lng=80.27&radius=10", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, "Parthasarathy Temple"))
	is.True(!strings.Contains(body, "Meenakshi Amman Temple"))
}

func TestThatControlServerExposesMetrics(t *testing.T) {
	is, app := setupTest(t)

	public := httptest.NewServer(app.public)
	defer public.Close()
	control := httptest.NewServer(app.control)
	defer control.Close()

	testRequest(is, public, http.MethodGet, "/api/v1/temples", nil)

	resp, _ := testRequest(is, control, http.MethodGet, "/health", nil)
	is.Equal(resp.StatusCode, http.StatusNoContent)

	resp, body := testRequest(is, control, http.MethodGet, "/metrics", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, "templefinder_http_requests_total"))
}

func TestThatShortSecretFailsInitialization(t *testing.T) {
	is := is.New(t)

	flags := testFlags()
	flags[jwtSecret] = "short"

	policies, err := os.Open("../../assets/config/authz.rego")
	is.NoErr(err)

	_, err = initialize(context.Background(), flags, testMessenger(), policies, nil, nil)
	is.True(err != nil)
}

func TestThatNotificationHandlersAreRegistered(t *testing.T) {
	is := is.New(t)

	policies, err := os.Open("../../assets/config/authz.rego")
	is.NoErr(err)

	topics := []string{}

	messenger := testMessenger()
	messenger.RegisterTopicMessageHandlerFunc = func(routingKey string, handler messaging.TopicMessageHandler) error {
		topics = append(topics, routingKey)
		return nil
	}

	_, err = initialize(context.Background(), testFlags(), messenger, policies, nil, nil)
	is.NoErr(err)

	is.Equal(len(topics), 4)
	is.True(strings.Contains(strings.Join(topics, ","), "review.added"))
}

func TestThatRunStopsWhenContextIsCancelled(t *testing.T) {
	is, app := setupTest(t)

	flags := testFlags()
	flags[listenAddress] = "127.0.0.1"
	flags[servicePort] = "0"
	flags[controlPort] = "0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- app.run(ctx, flags) }()

	cancel()

	select {
	case err := <-done:
		is.NoErr(err)
	case <-time.After(shutdownTimeout):
		t.Fatal("run did not return after cancellation")
	}
}

func TestThatRunReportsListenErrors(t *testing.T) {
	is, app := setupTest(t)

	flags := testFlags()
	flags[listenAddress] = "127.0.0.1"
	flags[servicePort] = "0"
	flags[controlPort] = "not-a-port"

	err := app.run(context.Background(), flags)
	is.True(err != nil)
}

func testFlags() flagMap {
	flags := defaultFlags()
	flags[jwtSecret] = "a-secret-that-is-long-enough"
	flags[bcryptCost] = "4"
	return flags
}

func setupTest(t *testing.T) (*is.I, *application) {
	is := is.New(t)

	policies, err := os.Open("../../assets/config/authz.rego")
	is.NoErr(err)

	temples, err := os.Open("../../assets/config/temples.csv")
	is.NoErr(err)

	app, err := initialize(context.Background(), testFlags(), testMessenger(), policies, temples, nil)
	is.NoErr(err)

	return is, app
}

func testMessenger() *messaging.MsgContextMock {
	return &messaging.MsgContextMock{
		PublishOnTopicFunc: func(ctx context.Context, message messaging.TopicMessage) error {
			return nil
		},
		RegisterTopicMessageHandlerFunc: func(routingKey string, handler messaging.TopicMessageHandler) error {
			return nil
		},
	}
}

func testRequest(is *is.I, ts *httptest.Server, method, path string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, body)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	return resp, string(respBody)
}
