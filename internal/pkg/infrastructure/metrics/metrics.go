package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	nearbySearches  prometheus.Counter
	nearbyResults   prometheus.Histogram
	reviewsAdded    prometheus.Counter
	geocodeFailures prometheus.Counter
	publishFailures *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "templefinder",
			Name:      "http_requests_total",
			Help:      "Number of handled http requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "templefinder",
			Name:      "http_request_duration_seconds",
			Help:      "Time spent handling http requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		nearbySearches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "templefinder",
			Name:      "nearby_searches_total",
			Help:      "Number of proximity searches.",
		}),
		nearbyResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "templefinder",
			Name:      "nearby_search_results",
			Help:      "Number of temples returned by proximity searches.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),
		reviewsAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "templefinder",
			Name:      "reviews_added_total",
			Help:      "Number of reviews added.",
		}),
		geocodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "templefinder",
			Name:      "geocode_failures_total",
			Help:      "Number of addresses that could not be geocoded.",
		}),
		publishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "templefinder",
			Name:      "publish_failures_total",
			Help:      "Number of messages that could not be published, by topic.",
		}, []string{"topic"}),
	}
}

func (m *Metrics) NearbySearch(results int) {
	m.nearbySearches.Inc()
	m.nearbyResults.Observe(float64(results))
}

func (m *Metrics) ReviewAdded() {
	m.reviewsAdded.Inc()
}

func (m *Metrics) GeocodeFailed() {
	m.geocodeFailures.Inc()
}

func (m *Metrics) PublishFailed(topic string) {
	m.publishFailures.WithLabelValues(topic).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by their chi route pattern to keep label
// cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
