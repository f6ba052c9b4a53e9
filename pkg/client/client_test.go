package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestFindNearby(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/api/v1/temples/nearby")
		is.Equal(r.URL.Query().Get("lat"), "13.05")
		is.Equal(r.URL.Query().Get("lng"), "80.27")
		is.Equal(r.URL.Query().Get("radius"), "5")
		is.Equal(r.URL.Query().Get("limit"), "3")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(nearbyResponse))
	}))
	defer server.Close()

	c := New(context.Background(), server.URL)

	temples, err := c.FindNearby(context.Background(), 13.05, 80.27, 5, 3)
	is.NoErr(err)
	is.Equal(len(temples), 2)
	is.Equal(temples[0].Name, "Parthasarathy Temple")
	is.Equal(*temples[0].Distance, 0.8)
}

func TestGetUnknownTempleReturnsErrNotFound(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"temple not found"}`))
	}))
	defer server.Close()

	c := New(context.Background(), server.URL)

	_, err := c.GetTemple(context.Background(), "nosuchtemple")
	is.True(errors.Is(err, ErrNotFound))
}

func TestAddReviewSignsInOnce(t *testing.T) {
	is := is.New(t)

	var logins int32
	token := testToken(time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			atomic.AddInt32(&logins, 1)
			body, _ := io.ReadAll(r.Body)
			is.True(strings.Contains(string(body), `"email":"meena@example.com"`))
			fmt.Fprintf(w, `{"data":{"user":{"id":"u1"},"token":%q}}`, token)
		default:
			is.Equal(r.Method, http.MethodPost)
			is.Equal(r.URL.Path, "/api/v1/temples/t1/reviews")
			is.Equal(r.Header.Get("Authorization"), "Bearer "+token)

			review := map[string]any{}
			is.NoErr(json.NewDecoder(r.Body).Decode(&review))
			is.Equal(review["rating"], float64(5))

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"r1","templeID":"t1","userID":"u1","rating":5,"comment":"Peaceful"}}`))
		}
	}))
	defer server.Close()

	ctx := context.Background()
	c := NewWithCredentials(ctx, server.URL, "meena@example.com", "secret-password")

	for i := 0; i < 2; i++ {
		review, err := c.AddReview(ctx, "t1", 5, "Peaceful")
		is.NoErr(err)
		is.Equal(review.ID, "r1")
	}

	is.Equal(atomic.LoadInt32(&logins), int32(1))
}

func TestBadCredentialsReturnErrUnauthorized(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer server.Close()

	ctx := context.Background()
	c := NewWithCredentials(ctx, server.URL, "meena@example.com", "wrong")

	_, err := c.AddReview(ctx, "t1", 5, "")
	is.True(errors.Is(err, ErrUnauthorized))
}

func TestExpiryOf(t *testing.T) {
	is := is.New(t)

	exp := time.Unix(time.Now().Add(time.Hour).Unix(), 0)

	is.Equal(expiryOf(testToken(exp)), exp)
	is.True(expiryOf("not-a-token").IsZero())
}

func testToken(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"sub":"u1","exp":%d}`, exp.Unix())))
	return header + "." + payload + ".signature"
}

const nearbyResponse string = `{"data":[
	{"id":"t2","name":"Parthasarathy Temple","city":"Chennai","location":{"latitude":13.0575,"longitude":80.2672},"distance":0.8},
	{"id":"t1","name":"Kapaleeshwarar Temple","city":"Chennai","location":{"latitude":13.0339,"longitude":80.262},"distance":1.9}
]}`
