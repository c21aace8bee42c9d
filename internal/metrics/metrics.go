// Package metrics exposes Prometheus instruments for the booking core and
// the HTTP layer.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
)

// OutcomeOK labels a successful operation.
const OutcomeOK = "ok"

// Metrics holds every instrument. Build one per registry.
type Metrics struct {
	bookings        *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	seats           *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bookings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_bookings_total",
				Help: "Booking attempts by outcome",
			},
			[]string{"outcome"},
		),
		cancellations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_cancellations_total",
				Help: "Cancellation attempts by outcome",
			},
			[]string{"outcome"},
		),
		seats: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_seats_total",
				Help: "Seats reserved and released through the ledger",
			},
			[]string{"direction"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventhub_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Outcome converts an error into a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return strings.ToLower(string(apperr.KindOf(err)))
}

// BookingOutcome counts one booking attempt.
func (m *Metrics) BookingOutcome(err error, seats int) {
	m.bookings.WithLabelValues(Outcome(err)).Inc()
	if err == nil {
		m.seats.WithLabelValues("reserved").Add(float64(seats))
	}
}

// CancellationOutcome counts one cancellation attempt.
func (m *Metrics) CancellationOutcome(err error, seats int) {
	m.cancellations.WithLabelValues(Outcome(err)).Inc()
	if err == nil {
		m.seats.WithLabelValues("released").Add(float64(seats))
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
