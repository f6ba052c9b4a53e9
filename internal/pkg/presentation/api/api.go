package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temple-finder/internal/pkg/application/accounts"
	"github.com/diwise/temple-finder/internal/pkg/application/reviews"
	"github.com/diwise/temple-finder/internal/pkg/application/templefinder"
	"github.com/diwise/temple-finder/internal/pkg/presentation/api/auth"
	"github.com/diwise/temple-finder/pkg/geo"
	"github.com/diwise/temple-finder/pkg/types"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("temple-finder/api")

const (
	apiPrefix      = "/api/v1"
	maxRequestBody = 1 << 20

	contentTypeJSON    = "application/json"
	contentTypeGeoJSON = "application/geo+json"
	contentTypeCSV     = "text/csv"
)

type Services struct {
	Temples  templefinder.TempleFinder
	Accounts accounts.Accounts
	Reviews  reviews.Reviews
	Tokens   *auth.Tokens
}

func RegisterHandlers(ctx context.Context, router *chi.Mux, policies io.Reader, svc Services) (*chi.Mux, error) {

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	log := logging.GetFromContext(ctx)

	authorizer, err := auth.NewAuthorizer(ctx, policies, apiPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create api authorizer: %w", err)
	}

	authenticator := svc.Tokens.Authenticator()

	router.Route(apiPrefix, func(r chi.Router) {
		r.Post("/auth/register", registerHandler(log, svc.Accounts))
		r.Post("/auth/login", loginHandler(log, svc.Accounts))

		r.Route("/temples", func(r chi.Router) {
			r.Get("/", queryTemplesHandler(log, svc.Temples))
			r.Get("/nearby", nearbyTemplesHandler(log, svc.Temples))
			r.Get("/categories", categoriesHandler(log, svc.Temples))
			r.Get("/deities", deitiesHandler(log, svc.Temples))
			r.Get("/{templeID}", getTempleHandler(log, svc.Temples))
			r.Get("/{templeID}/reviews", templeReviewsHandler(log, svc.Reviews))
			r.Get("/{templeID}/events", templeEventsHandler(log, svc.Temples))
			r.Get("/{templeID}/timings", poojaTimingsHandler(log, svc.Temples))

			r.Group(func(r chi.Router) {
				r.Use(authenticator)
				r.Post("/{templeID}/reviews", addReviewHandler(log, svc.Reviews))
			})

			r.Group(func(r chi.Router) {
				r.Use(authenticator)
				r.Use(authorizer.RequireAccess())

				r.Post("/", createTempleHandler(log, svc.Temples))
				r.Put("/{templeID}", updateTempleHandler(log, svc.Temples))
				r.Delete("/{templeID}", deleteTempleHandler(log, svc.Temples))
				r.Post("/{templeID}/events", addEventHandler(log, svc.Temples))
				r.Post("/{templeID}/timings", addPoojaTimingHandler(log, svc.Temples))
				r.Put("/{templeID}/occupancy", occupancyHandler(log, svc.Temples))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Delete("/reviews/{reviewID}", deleteReviewHandler(log, svc.Reviews))

			r.Route("/me", func(r chi.Router) {
				r.Get("/", profileHandler(log, svc.Accounts))
				r.Put("/", updateProfileHandler(log, svc.Accounts))
				r.Put("/location", updateLocationHandler(log, svc.Accounts))
				r.Get("/nearby", nearbyForUserHandler(log, svc.Accounts))
				r.Get("/reviews", myReviewsHandler(log, svc.Reviews))
				r.Get("/favorites", favoritesHandler(log, svc.Accounts))
				r.Put("/favorites/{templeID}", addFavoriteHandler(log, svc.Accounts))
				r.Delete("/favorites/{templeID}", removeFavoriteHandler(log, svc.Accounts))
			})
		})
	})

	return router, nil
}

// statusFor maps the errors of the application layer to http status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, templefinder.ErrInvalidParameter),
		errors.Is(err, geo.ErrInvalidPoint),
		errors.Is(err, geo.ErrInvalidRadius),
		errors.Is(err, geo.ErrInvalidLimit),
		errors.Is(err, accounts.ErrNoLocation),
		errors.Is(err, errBadRequestBody):
		return http.StatusBadRequest
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, reviews.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, templefinder.ErrTempleNotFound),
		errors.Is(err, accounts.ErrUserNotFound),
		errors.Is(err, accounts.ErrFavoriteNotFound),
		errors.Is(err, reviews.ErrReviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, templefinder.ErrTempleAlreadyExists),
		errors.Is(err, accounts.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequestBody = errors.New("request body could not be read")

func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)

	body := ApiError{Error: err.Error()}
	if status == http.StatusInternalServerError {
		logger.Error(msg, "err", err.Error())
		body.Error = http.StatusText(status)
	} else {
		logger.Debug(msg, "status", status, "err", err.Error())
	}

	b, _ := json.Marshal(body)

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	w.Write(b)
}

func writeResponse(w http.ResponseWriter, status int, response ApiResponse) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	w.Write(response.Byte())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errBadRequestBody, err.Error())
	}
	return body, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequestBody, err.Error())
	}
	return nil
}

func wantsMediaType(r *http.Request, mediaType string) bool {
	return strings.Contains(r.Header.Get("Accept"), mediaType)
}

func currentUser(r *http.Request) auth.Claims {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

func registerHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "register-user")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var registration accounts.Registration
		if err = decodeBody(w, r, &registration); err != nil {
			writeError(w, requestLogger, "unable to unmarshal registration", err)
			return
		}

		user, token, err := svc.Register(ctx, registration)
		if err != nil {
			writeError(w, requestLogger, "unable to register user", err)
			return
		}

		writeResponse(w, http.StatusCreated, ApiResponse{Data: tokenResponse{User: user, Token: token}})
	}
}

type tokenResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

func loginHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "login")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		credentials := struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}{}

		if err = decodeBody(w, r, &credentials); err != nil {
			writeError(w, requestLogger, "unable to unmarshal credentials", err)
			return
		}

		user, token, err := svc.Login(ctx, credentials.Email, credentials.Password)
		if err != nil {
			writeError(w, requestLogger, "login failed", err)
			return
		}

		requestLogger.Info("user logged in", "userID", user.ID)

		writeResponse(w, http.StatusOK, ApiResponse{Data: tokenResponse{User: user, Token: token}})
	}
}

func queryTemplesHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-temples")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		collection, err := svc.Query(ctx, r.URL.Query())
		if err != nil {
			writeError(w, requestLogger, "unable to query temples", err)
			return
		}

		switch {
		case wantsMediaType(r, contentTypeGeoJSON):
			fc := NewFeatureCollectionWithTemples(collection.Data)
			fc.Meta, fc.Links = pagination(r, collection.Count, collection.Offset, collection.Limit, collection.TotalCount)

			b, _ := json.Marshal(fc)
			w.Header().Set("Content-Type", contentTypeGeoJSON)
			w.WriteHeader(http.StatusOK)
			w.Write(b)
		case wantsMediaType(r, contentTypeCSV):
			w.Header().Set("Content-Type", contentTypeCSV)
			w.WriteHeader(http.StatusOK)
			if err = writeCsvWithTemples(w, collection.Data); err != nil {
				requestLogger.Error("unable to write csv", "err", err.Error())
			}
		default:
			writeResponse(w, http.StatusOK, newCollectionResponse(r, collection))
		}
	}
}

func nearbyTemplesHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "nearby-temples")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		params := r.URL.Query()

		origin, err := templefinder.ParseOrigin(params)
		if err == nil && origin == nil {
			err = fmt.Errorf("%w: lat and lng are required", templefinder.ErrInvalidParameter)
		}
		if err != nil {
			writeError(w, requestLogger, "bad origin", err)
			return
		}

		radius := geo.NearbyRadiusKm
		if rp := params.Get("radius"); rp != "" {
			if radius, err = templefinder.ParseRadius(rp); err != nil {
				writeError(w, requestLogger, "bad radius", err)
				return
			}
		}

		limit, err := templefinder.ParseLimit(params.Get("limit"), templefinder.DefaultNearby)
		if err != nil {
			writeError(w, requestLogger, "bad limit", err)
			return
		}

		temples, err := svc.Nearby(ctx, *origin, radius, limit)
		if err != nil {
			writeError(w, requestLogger, "unable to find nearby temples", err)
			return
		}

		requestLogger.Debug(fmt.Sprintf("found %d temples within %.1f km", len(temples), radius))

		if wantsMediaType(r, contentTypeGeoJSON) {
			b, _ := json.Marshal(NewFeatureCollectionWithTemples(temples))
			w.Header().Set("Content-Type", contentTypeGeoJSON)
			w.WriteHeader(http.StatusOK)
			w.Write(b)
			return
		}

		count := uint64(len(temples))
		writeResponse(w, http.StatusOK, ApiResponse{
			Meta: &meta{TotalRecords: count, Count: count},
			Data: temples,
		})
	}
}

func categoriesHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return groupCountHandler(log, "get-categories", svc.Categories)
}

func deitiesHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return groupCountHandler(log, "get-deities", svc.Deities)
}

func groupCountHandler(log *slog.Logger, name string, fetch func(context.Context) ([]types.Category, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), name)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		result, err := fetch(ctx)
		if err != nil {
			writeError(w, requestLogger, "unable to count temples", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: result})
	}
}

func getTempleHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-temple")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		templeID := chi.URLParam(r, "templeID")
		requestLogger = requestLogger.With(slog.String("templeID", templeID))

		temple, err := svc.GetByID(ctx, templeID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch temple", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: temple})
	}
}

func createTempleHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-temple")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var temple types.Temple
		if err = decodeBody(w, r, &temple); err != nil {
			writeError(w, requestLogger, "unable to unmarshal temple", err)
			return
		}

		created, err := svc.Create(ctx, temple)
		if err != nil {
			writeError(w, requestLogger, "unable to create temple", err)
			return
		}

		w.Header().Set("Location", fmt.Sprintf("%s/temples/%s", apiPrefix, created.ID))
		writeResponse(w, http.StatusCreated, ApiResponse{Data: created})
	}
}

func updateTempleHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "update-temple")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		templeID := chi.URLParam(r, "templeID")
		requestLogger = requestLogger.With(slog.String("templeID", templeID))

		body, err := readBody(w, r)
		if err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		temple, err := svc.Update(ctx, templeID, func(t *types.Temple) error {
			return json.Unmarshal(body, t)
		})
		if err != nil {
			writeError(w, requestLogger, "unable to update temple", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: temple})
	}
}

func deleteTempleHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-temple")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		templeID := chi.URLParam(r, "templeID")

		if err = svc.Delete(ctx, templeID); err != nil {
			writeError(w, requestLogger, "unable to delete temple", err)
			return
		}

		requestLogger.Info("temple deactivated", "templeID", templeID, "userID", currentUser(r).UserID)

		w.WriteHeader(http.StatusNoContent)
	}
}

func occupancyHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "set-occupancy")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		body := struct {
			CurrentOccupancy *int `json:"currentOccupancy"`
		}{}

		if err = decodeBody(w, r, &body); err != nil {
			writeError(w, requestLogger, "unable to unmarshal occupancy", err)
			return
		}
		if body.CurrentOccupancy == nil {
			err = fmt.Errorf("%w: currentOccupancy is required", types.ErrValidation)
			writeError(w, requestLogger, "missing occupancy", err)
			return
		}

		temple, err := svc.SetOccupancy(ctx, chi.URLParam(r, "templeID"), *body.CurrentOccupancy)
		if err != nil {
			writeError(w, requestLogger, "unable to set occupancy", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: temple})
	}
}

func templeEventsHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-events")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		upcoming := false
		if u := r.URL.Query().Get("upcoming"); u != "" {
			if upcoming, err = strconv.ParseBool(u); err != nil {
				err = fmt.Errorf("%w: upcoming must be true or false", templefinder.ErrInvalidParameter)
				writeError(w, requestLogger, "bad parameter", err)
				return
			}
		}

		events, err := svc.Events(ctx, chi.URLParam(r, "templeID"), upcoming)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch events", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: events})
	}
}

func addEventHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "add-event")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var event types.Event
		if err = decodeBody(w, r, &event); err != nil {
			writeError(w, requestLogger, "unable to unmarshal event", err)
			return
		}

		added, err := svc.AddEvent(ctx, chi.URLParam(r, "templeID"), event)
		if err != nil {
			writeError(w, requestLogger, "unable to add event", err)
			return
		}

		writeResponse(w, http.StatusCreated, ApiResponse{Data: added})
	}
}

func poojaTimingsHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-pooja-timings")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var day *time.Weekday

		switch d := r.URL.Query().Get("day"); d {
		case "":
		case "today":
			today := time.Now().Weekday()
			day = &today
		default:
			n, convErr := strconv.Atoi(d)
			if convErr != nil || n < 0 || n > 6 {
				err = fmt.Errorf("%w: day must be 0 (Sunday) to 6 (Saturday) or today", templefinder.ErrInvalidParameter)
				writeError(w, requestLogger, "bad parameter", err)
				return
			}
			wd := time.Weekday(n)
			day = &wd
		}

		timings, err := svc.PoojaTimings(ctx, chi.URLParam(r, "templeID"), day)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch pooja timings", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: timings})
	}
}

func addPoojaTimingHandler(log *slog.Logger, svc templefinder.TempleFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "add-pooja-timing")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var timing types.PoojaTiming
		if err = decodeBody(w, r, &timing); err != nil {
			writeError(w, requestLogger, "unable to unmarshal pooja timing", err)
			return
		}

		added, err := svc.AddPoojaTiming(ctx, chi.URLParam(r, "templeID"), timing)
		if err != nil {
			writeError(w, requestLogger, "unable to add pooja timing", err)
			return
		}

		writeResponse(w, http.StatusCreated, ApiResponse{Data: added})
	}
}

func templeReviewsHandler(log *slog.Logger, svc reviews.Reviews) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-temple-reviews")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		params := r.URL.Query()

		limit, err := templefinder.ParseLimit(params.Get("limit"), templefinder.DefaultPageSize)
		if err != nil {
			writeError(w, requestLogger, "bad limit", err)
			return
		}

		page := 1
		if p := params.Get("page"); p != "" {
			if page, err = strconv.Atoi(p); err != nil || page < 1 {
				err = fmt.Errorf("%w: page must be a positive integer", templefinder.ErrInvalidParameter)
				writeError(w, requestLogger, "bad page", err)
				return
			}
		}

		collection, err := svc.ListByTemple(ctx, chi.URLParam(r, "templeID"), (page-1)*limit, limit)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch reviews", err)
			return
		}

		writeResponse(w, http.StatusOK, newCollectionResponse(r, collection))
	}
}

func addReviewHandler(log *slog.Logger, svc reviews.Reviews) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "add-review")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var review types.Review
		if err = decodeBody(w, r, &review); err != nil {
			writeError(w, requestLogger, "unable to unmarshal review", err)
			return
		}

		added, err := svc.Add(ctx, chi.URLParam(r, "templeID"), currentUser(r).UserID, review)
		if err != nil {
			writeError(w, requestLogger, "unable to add review", err)
			return
		}

		writeResponse(w, http.StatusCreated, ApiResponse{Data: added})
	}
}

func deleteReviewHandler(log *slog.Logger, svc reviews.Reviews) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-review")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		user := currentUser(r)

		if err = svc.Delete(ctx, chi.URLParam(r, "reviewID"), user.UserID, user.Role); err != nil {
			writeError(w, requestLogger, "unable to delete review", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func myReviewsHandler(log *slog.Logger, svc reviews.Reviews) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-my-reviews")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		result, err := svc.ListByUser(ctx, currentUser(r).UserID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch reviews", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: result})
	}
}

func profileHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-profile")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		user, err := svc.Profile(ctx, currentUser(r).UserID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch profile", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: user})
	}
}

func updateProfileHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "update-profile")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		body, err := readBody(w, r)
		if err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		user, err := svc.UpdateProfile(ctx, currentUser(r).UserID, func(u *types.User) error {
			return json.Unmarshal(body, u)
		})
		if err != nil {
			writeError(w, requestLogger, "unable to update profile", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: user})
	}
}

func updateLocationHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "update-location")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var location types.UserLocation
		if err = decodeBody(w, r, &location); err != nil {
			writeError(w, requestLogger, "unable to unmarshal location", err)
			return
		}

		user, err := svc.UpdateLocation(ctx, currentUser(r).UserID, location)
		if err != nil {
			writeError(w, requestLogger, "unable to update location", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: user})
	}
}

func nearbyForUserHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "nearby-for-user")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		params := r.URL.Query()

		radius := 0.0
		if rp := params.Get("radius"); rp != "" {
			if radius, err = templefinder.ParseRadius(rp); err != nil {
				writeError(w, requestLogger, "bad radius", err)
				return
			}
		}

		limit, err := templefinder.ParseLimit(params.Get("limit"), templefinder.DefaultNearby)
		if err != nil {
			writeError(w, requestLogger, "bad limit", err)
			return
		}

		temples, err := svc.NearbyForUser(ctx, currentUser(r).UserID, radius, limit)
		if err != nil {
			writeError(w, requestLogger, "unable to find temples near user", err)
			return
		}

		count := uint64(len(temples))
		writeResponse(w, http.StatusOK, ApiResponse{
			Meta: &meta{TotalRecords: count, Count: count},
			Data: temples,
		})
	}
}

func favoritesHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-favorites")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		favorites, err := svc.Favorites(ctx, currentUser(r).UserID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch favorites", err)
			return
		}

		writeResponse(w, http.StatusOK, ApiResponse{Data: favorites})
	}
}

func addFavoriteHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "add-favorite")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		if err = svc.AddFavorite(ctx, currentUser(r).UserID, chi.URLParam(r, "templeID")); err != nil {
			writeError(w, requestLogger, "unable to add favorite", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func removeFavoriteHandler(log *slog.Logger, svc accounts.Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "remove-favorite")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		if err = svc.RemoveFavorite(ctx, currentUser(r).UserID, chi.URLParam(r, "templeID")); err != nil {
			writeError(w, requestLogger, "unable to remove favorite", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
