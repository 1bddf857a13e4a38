package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus collectors of the payment engine.
type Metrics struct {
	registry *prometheus.Registry

	PaymentsCreated   prometheus.Counter
	PaymentMismatches prometheus.Counter
	EntriesWritten    prometheus.Counter
	Reconciliations   *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry, so tests can
// construct handlers without duplicate-registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PaymentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Successfully created payment operations.",
		}),
		PaymentMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_amount_mismatch_total",
			Help: "Payment attempts rejected because declared totals did not match the requirement.",
		}),
		EntriesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "accounting_entries_written_total",
			Help: "Accounting entries persisted to the ledger.",
		}),
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_reconciliations_total",
			Help: "Payment status derivations, labelled by resulting status.",
		}, []string{"status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

// Middleware records request latency labelled by method, route pattern and
// status. The route pattern keeps label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(recorder, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		m.HTTPDuration.WithLabelValues(r.Method, path,
			strconv.Itoa(recorder.Status())).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
