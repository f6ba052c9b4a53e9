package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temple-finder/pkg/types"
	"github.com/go-chi/jwtauth/v5"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
)

type userContextKey struct{ name string }

var userCtxKey = &userContextKey{"user"}

var tracer = otel.Tracer("temple-finder/authz")

var ErrMissingToken = errors.New("authorization token missing or invalid")

// Claims holds the identity carried by a verified access token.
type Claims struct {
	UserID string
	Email  string
	Role   string
}

func (c Claims) IsAdmin() bool {
	return c.Role == types.RoleAdmin
}

type Tokens struct {
	ja     *jwtauth.JWTAuth
	expiry time.Duration
}

func NewTokens(secret string, expiry time.Duration) (*Tokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}

	return &Tokens{
		ja:     jwtauth.New("HS256", []byte(secret), nil),
		expiry: expiry,
	}, nil
}

// Issue creates a signed token for the user, valid for the configured expiry.
func (t *Tokens) Issue(user types.User) (string, error) {
	claims := map[string]any{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, t.expiry)

	_, token, err := t.ja.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return token, nil
}

// Authenticator verifies the bearer token of the request and stores its
// claims in the request context. Requests without a valid token get 401.
func (t *Tokens) Authenticator() func(http.Handler) http.Handler {
	verifier := jwtauth.Verifier(t.ja)

	return func(next http.Handler) http.Handler {
		return verifier(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.GetFromContext(r.Context())

			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				logger.Info("request not authenticated", "err", err)
				writeError(w, ErrMissingToken, http.StatusUnauthorized)
				return
			}

			user := Claims{UserID: token.Subject()}
			user.Email, _ = claims["email"].(string)
			user.Role, _ = claims["role"].(string)

			if user.UserID == "" || user.Role == "" {
				logger.Info("token lacks subject or role")
				writeError(w, ErrMissingToken, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		}))
	}
}

type Authorizer interface {
	RequireAccess() func(http.Handler) http.Handler
}

type impl struct {
	query  rego.PreparedEvalQuery
	prefix string
}

// NewAuthorizer prepares the rego policy used to decide if an authenticated user
// may perform a request. Paths are evaluated relative to prefix.
func NewAuthorizer(ctx context.Context, policies io.Reader, prefix string) (Authorizer, error) {
	module, err := io.ReadAll(policies)
	if err != nil {
		return nil, fmt.Errorf("unable to read authz policies: %s", err.Error())
	}

	query, err := rego.New(
		rego.Query("x = data.templefinder.authz.allow"),
		rego.Module("templefinder.rego", string(module)),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	return &impl{query: query, prefix: prefix}, nil
}

// RequireAccess must be chained after the authenticator.
func (a *impl) RequireAccess() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error

			logger := logging.GetFromContext(r.Context())

			ctx, span := tracer.Start(r.Context(), "check-auth")
			defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

			user, ok := UserFromContext(r.Context())
			if !ok {
				err = ErrMissingToken
				writeError(w, err, http.StatusUnauthorized)
				return
			}

			path := strings.Trim(strings.TrimPrefix(r.URL.Path, a.prefix), "/")

			input := map[string]any{
				"method": r.Method,
				"path":   strings.Split(path, "/"),
				"role":   user.Role,
				"sub":    user.UserID,
			}

			results, err := a.query.Eval(ctx, rego.EvalInput(input))
			if err != nil {
				logger.Error("opa eval failed", "err", err.Error())
				writeError(w, err, http.StatusInternalServerError)
				return
			}

			if len(results) == 0 {
				err = errors.New("opa query could not be satisfied")
				logger.Error("auth failed", "err", err.Error())
				writeError(w, err, http.StatusInternalServerError)
				return
			}

			allowed, ok := results[0].Bindings["x"].(bool)
			if !ok || !allowed {
				err = errors.New("access denied")
				logger.Warn(err.Error(), "userID", user.UserID, "role", user.Role, "path", r.URL.Path)
				writeError(w, err, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, user Claims) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

func UserFromContext(ctx context.Context) (Claims, bool) {
	user, ok := ctx.Value(userCtxKey).(Claims)
	return user, ok
}

func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
