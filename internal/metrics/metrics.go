// Package metrics holds the Prometheus instruments of the travel log API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics tracks place mutations, auth attempts and HTTP latency.
type Metrics struct {
	PlaceMutations *prometheus.CounterVec
	AuthAttempts   *prometheus.CounterVec
	PlacesImported prometheus.Counter
	RequestLatency *prometheus.HistogramVec
}

// New registers all instruments on reg. Pass a fresh prometheus.NewRegistry()
// in tests so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PlaceMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travellog_place_mutations_total",
			Help: "Place mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travellog_auth_attempts_total",
			Help: "Auth operations by operation and outcome",
		}, []string{"op", "outcome"}),
		PlacesImported: f.NewCounter(prometheus.CounterOpts{
			Name: "travellog_places_imported_total",
			Help: "Places stored through bulk import",
		}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "travellog_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}

// Place records one place mutation. A nil receiver is a no-op.
func (m *Metrics) Place(op string, err error) {
	if m == nil {
		return
	}
	m.PlaceMutations.WithLabelValues(op, outcome(err)).Inc()
}

// Auth records one auth operation. A nil receiver is a no-op.
func (m *Metrics) Auth(op string, err error) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(op, outcome(err)).Inc()
}

// Imported adds n imported places.
func (m *Metrics) Imported(n int) {
	if m == nil {
		return
	}
	m.PlacesImported.Add(float64(n))
}

// ObserveRequest records the duration of one HTTP request.
// Call with time.Now() taken at the start of the request.
func (m *Metrics) ObserveRequest(route, status string, start time.Time) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
