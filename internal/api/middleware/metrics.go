package middleware

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestLabels = []string{FieldVersion, FieldRole, FieldModule, FieldStatusCode}

// Metrics counts OCPI requests by version, role, module and protocol status.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the request collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpi",
			Name:      "requests_total",
			Help:      "Total number of OCPI requests by protocol status code.",
		}, requestLabels),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ocpi",
			Name:      "request_duration_seconds",
			Help:      "Duration of OCPI requests.",
			Buckets:   prometheus.DefBuckets,
		}, requestLabels),
	}
}

// Middleware observes every request passing through it. Labels are read from
// the request-scoped fields set by the auth middleware and the service.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, fields := withLogFields(r.Context())

		next.ServeHTTP(w, r.WithContext(ctx))

		labels := prometheus.Labels{}
		for _, name := range requestLabels {
			labels[name] = fields.get(name)
		}
		m.requests.With(labels).Inc()
		m.duration.With(labels).Observe(time.Since(start).Seconds())
	})
}
