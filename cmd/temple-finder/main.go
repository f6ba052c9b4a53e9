package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temple-finder/internal/pkg/application/accounts"
	"github.com/diwise/temple-finder/internal/pkg/application/notifications"
	"github.com/diwise/temple-finder/internal/pkg/application/reviews"
	"github.com/diwise/temple-finder/internal/pkg/application/templefinder"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/geocoding"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/metrics"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/temple-finder/internal/pkg/infrastructure/router"
	"github.com/diwise/temple-finder/internal/pkg/presentation/api"
	"github.com/diwise/temple-finder/internal/pkg/presentation/api/auth"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName string = "temple-finder"

const shutdownTimeout = 10 * time.Second

func defaultFlags() flagMap {
	return flagMap{
		listenAddress: "0.0.0.0",
		servicePort:   "8080",
		controlPort:   "8000",
		enableTracing: "true",

		policiesFile:      "/opt/templefinder/config/authz.rego",
		templesFile:       "/opt/templefinder/config/temples.csv",
		notificationsFile: "/opt/templefinder/config/notifications.yaml",

		dbHost:     "",
		dbUser:     "",
		dbPassword: "",
		dbPort:     "5432",
		dbName:     "templefinder",
		dbSSLMode:  "disable",

		jwtSecret:   "",
		tokenExpiry: "168h",
		adminEmails: "",
		bcryptCost:  "12",

		mapsAPIKey:    "",
		mapsRateLimit: "10",
	}
}

func main() {
	ctx, flags := parseExternalConfig(context.Background(), defaultFlags())

	serviceVersion := buildinfo.SourceVersion()
	ctx, logger, cleanup := o11y.Init(ctx, serviceName, serviceVersion, "json")
	defer cleanup()

	// o11y cleanup must not inherit the signal context
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	policies, err := os.Open(flags[policiesFile])
	exitIf(err, logger, "unable to open opa policy file")

	var temples io.ReadCloser
	if f, err := os.Open(flags[templesFile]); err == nil {
		temples = f
	} else {
		logger.Warn("no temples file, starting without seed data", "err", err.Error())
	}

	notificationConfig, err := loadNotifications(flags[notificationsFile])
	exitIf(err, logger, "could not load notification configuration")

	messenger, err := messaging.Initialize(ctx, messaging.LoadConfiguration(ctx, serviceName, logger))
	exitIf(err, logger, "failed to init messenger")
	defer messenger.Close()

	messenger.Start()

	app, err := initialize(ctx, flags, messenger, policies, temples, notificationConfig)
	exitIf(err, logger, "failed to initialize service")

	err = app.run(ctx, flags)
	exitIf(err, logger, "server stopped with error")
}

type application struct {
	public  http.Handler
	control http.Handler
}

func initialize(ctx context.Context, flags flagMap, messenger messaging.MsgContext, policies io.ReadCloser, temples io.ReadCloser, notificationConfig *notifications.Config) (*application, error) {
	defer policies.Close()

	log := logging.GetFromContext(ctx)

	connect := database.NewConnector(ctx, database.ConnectorConfig{
		Host:     flags[dbHost],
		Port:     flags[dbPort],
		Username: flags[dbUser],
		DbName:   flags[dbName],
		Password: flags[dbPassword],
		SslMode:  flags[dbSSLMode],
	})

	if err := database.Migrate(connect); err != nil {
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	templeRepo, err := database.NewTempleRepository(connect)
	if err != nil {
		return nil, err
	}
	userRepo, err := database.NewUserRepository(connect)
	if err != nil {
		return nil, err
	}
	reviewRepo, err := database.NewReviewRepository(connect)
	if err != nil {
		return nil, err
	}

	if temples != nil {
		defer temples.Close()
		if err := templeRepo.Seed(ctx, temples); err != nil {
			return nil, fmt.Errorf("failed to seed temples: %w", err)
		}
	}

	sender, err := notifications.New(notificationConfig)
	if err != nil {
		return nil, err
	}
	if err = notifications.RegisterTopicMessageHandlers(messenger, sender); err != nil {
		return nil, err
	}

	rateLimit, _ := strconv.Atoi(flags[mapsRateLimit])
	geocoder, err := geocoding.New(flags[mapsAPIKey], rateLimit)
	if err != nil {
		return nil, err
	}

	expiry, err := time.ParseDuration(flags[tokenExpiry])
	if err != nil {
		return nil, fmt.Errorf("bad token expiry %q: %w", flags[tokenExpiry], err)
	}
	tokens, err := auth.NewTokens(flags[jwtSecret], expiry)
	if err != nil {
		return nil, err
	}

	cost, err := strconv.Atoi(flags[bcryptCost])
	if err != nil {
		return nil, fmt.Errorf("bad bcrypt cost %q: %w", flags[bcryptCost], err)
	}

	m := metrics.New()

	finder := templefinder.New(templeRepo, geocoder, messenger, m)

	svc := api.Services{
		Temples: finder,
		Accounts: accounts.New(userRepo, finder, tokens, accounts.Config{
			AdminEmails: lo.Compact(lo.Map(strings.Split(flags[adminEmails], ","), func(s string, _ int) string {
				return strings.TrimSpace(s)
			})),
			BcryptCost: cost,
		}),
		Reviews: reviews.New(reviewRepo, finder, messenger, m),
		Tokens:  tokens,
	}

	var public http.Handler
	public, err = api.RegisterHandlers(ctx, router.New(serviceName, m.Middleware), policies, svc)
	if err != nil {
		return nil, err
	}

	if flags[enableTracing] == "true" {
		public = otelhttp.NewHandler(public, serviceName)
	}

	control := chi.NewRouter()
	control.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	control.Handle("/metrics", m.Handler())

	log.Info("service initialized")

	return &application{
		public:  public,
		control: control,
	}, nil
}

// run serves the public api and the control endpoints until ctx is cancelled.
func (a *application) run(ctx context.Context, flags flagMap) error {
	logger := logging.GetFromContext(ctx)

	servers := []*http.Server{
		newServer(ctx, net.JoinHostPort(flags[listenAddress], flags[servicePort]), a.public),
		newServer(ctx, net.JoinHostPort(flags[listenAddress], flags[controlPort]), a.control),
	}

	errs := make(chan error, len(servers))

	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("listening", "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}(s)
	}

	var err error

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	for _, s := range servers {
		s.Shutdown(shutdownCtx)
	}

	return err
}

func newServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func loadNotifications(path string) (*notifications.Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return notifications.LoadConfiguration(f)
}

func parseExternalConfig(ctx context.Context, flags flagMap) (context.Context, flagMap) {
	// Allow environment variables to override certain defaults
	envOrDef := env.GetVariableOrDefault

	flags[listenAddress] = envOrDef(ctx, "LISTEN_ADDRESS", flags[listenAddress])
	flags[controlPort] = envOrDef(ctx, "CONTROL_PORT", flags[controlPort])
	flags[servicePort] = envOrDef(ctx, "SERVICE_PORT", flags[servicePort])
	flags[enableTracing] = envOrDef(ctx, "ENABLE_TRACING", flags[enableTracing])

	flags[policiesFile] = envOrDef(ctx, "POLICIES_FILE", flags[policiesFile])
	flags[templesFile] = envOrDef(ctx, "TEMPLES_FILE", flags[templesFile])
	flags[notificationsFile] = envOrDef(ctx, "NOTIFICATIONS_FILE", flags[notificationsFile])

	flags[dbHost] = envOrDef(ctx, "POSTGRES_HOST", flags[dbHost])
	flags[dbPort] = envOrDef(ctx, "POSTGRES_PORT", flags[dbPort])
	flags[dbName] = envOrDef(ctx, "POSTGRES_DBNAME", flags[dbName])
	flags[dbUser] = envOrDef(ctx, "POSTGRES_USER", flags[dbUser])
	flags[dbPassword] = envOrDef(ctx, "POSTGRES_PASSWORD", flags[dbPassword])
	flags[dbSSLMode] = envOrDef(ctx, "POSTGRES_SSLMODE", flags[dbSSLMode])

	flags[jwtSecret] = envOrDef(ctx, "JWT_SECRET", flags[jwtSecret])
	flags[tokenExpiry] = envOrDef(ctx, "JWT_EXPIRY", flags[tokenExpiry])
	flags[adminEmails] = envOrDef(ctx, "ADMIN_EMAILS", flags[adminEmails])
	flags[bcryptCost] = envOrDef(ctx, "BCRYPT_COST", flags[bcryptCost])

	flags[mapsAPIKey] = envOrDef(ctx, "GOOGLE_MAPS_API_KEY", flags[mapsAPIKey])
	flags[mapsRateLimit] = envOrDef(ctx, "GOOGLE_MAPS_RATE_LIMIT", flags[mapsRateLimit])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("policies", "an authorization policy file", apply(policiesFile))
	flag.Func("temples", "a semicolon separated file with temples to seed", apply(templesFile))
	flag.Func("notifications", "webhook subscriber configuration", apply(notificationsFile))
	flag.Func("port", "the port of the public api", apply(servicePort))
	flag.Parse()

	return ctx, flags
}

func exitIf(err error, logger *slog.Logger, msg string, args ...any) {
	if err != nil {
		logger.With(args...).Error(msg, "err", err.Error())
		time.Sleep(2 * time.Second)
		os.Exit(1)
	}
}
