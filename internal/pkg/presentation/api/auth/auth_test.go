package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/diwise/temple-finder/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/matryer/is"
)

const testSecret = "a-secret-that-is-long-enough"

func TestTokenRoundTrip(t *testing.T) {
	is := is.New(t)

	tokens, err := NewTokens(testSecret, time.Hour)
	is.NoErr(err)

	token, err := tokens.Issue(types.User{ID: "u1", Email: "meena@example.com", Role: types.RoleModerator})
	is.NoErr(err)

	var seen Claims
	handler := tokens.Authenticator()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	is.Equal(res.Code, http.StatusNoContent)
	is.Equal(seen, Claims{UserID: "u1", Email: "meena@example.com", Role: types.RoleModerator})
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	is := is.New(t)

	tokens, err := NewTokens(testSecret, time.Hour)
	is.NoErr(err)
	expired, err := NewTokens(testSecret, -time.Hour)
	is.NoErr(err)
	other, err := NewTokens("another-secret-that-is-long", time.Hour)
	is.NoErr(err)

	expiredToken, err := expired.Issue(types.User{ID: "u1", Role: types.RoleUser})
	is.NoErr(err)
	forged, err := other.Issue(types.User{ID: "u1", Role: types.RoleAdmin})
	is.NoErr(err)

	handler := tokens.Authenticator()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Bearer", "Bearer " + expiredToken, "Bearer " + forged, "Bearer not.a.token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		is.Equal(res.Code, http.StatusUnauthorized)
	}
}

func TestShortSecretIsRejected(t *testing.T) {
	is := is.New(t)
	_, err := NewTokens("short", time.Hour)
	is.True(err != nil)
}

func TestPolicy(t *testing.T) {
	is := is.New(t)

	policies, err := os.Open("../../../../../assets/config/authz.rego")
	is.NoErr(err)
	defer policies.Close()

	authz, err := NewAuthorizer(context.Background(), policies, "/api/v1")
	is.NoErr(err)

	r := chi.NewRouter()
	r.Route("/api/v1/temples", func(r chi.Router) {
		r.Use(authz.RequireAccess())
		ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
		r.Post("/", ok)
		r.Put("/{id}", ok)
		r.Delete("/{id}", ok)
		r.Post("/{id}/events", ok)
		r.Post("/{id}/timings", ok)
		r.Put("/{id}/occupancy", ok)
	})

	tests := []struct {
		role   string
		method string
		path   string
		status int
	}{
		{types.RoleAdmin, http.MethodPost, "/api/v1/temples", http.StatusNoContent},
		{types.RoleAdmin, http.MethodDelete, "/api/v1/temples/t1", http.StatusNoContent},
		{types.RoleModerator, http.MethodPut, "/api/v1/temples/t1", http.StatusNoContent},
		{types.RoleModerator, http.MethodPut, "/api/v1/temples/t1/occupancy", http.StatusNoContent},
		{types.RoleModerator, http.MethodPost, "/api/v1/temples/t1/events", http.StatusNoContent},
		{types.RoleModerator, http.MethodPost, "/api/v1/temples/t1/timings", http.StatusNoContent},
		{types.RoleModerator, http.MethodPost, "/api/v1/temples", http.StatusForbidden},
		{types.RoleModerator, http.MethodDelete, "/api/v1/temples/t1", http.StatusForbidden},
		{types.RoleUser, http.MethodPut, "/api/v1/temples/t1", http.StatusForbidden},
		{types.RoleUser, http.MethodPost, "/api/v1/temples/t1/events", http.StatusForbidden},
		{"", http.MethodPost, "/api/v1/temples", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.role != "" {
			req = req.WithContext(WithUser(req.Context(), Claims{UserID: "u1", Role: tc.role}))
		}
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		is.Equal(res.Code, tc.status) // unexpected status for role and path
	}
}
