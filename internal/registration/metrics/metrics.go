package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeCreated   = "created"
	OutcomeInvalid   = "invalid"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Metrics provides observability for the registration module.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	ByDevice       *prometheus.CounterVec
	InsertDuration prometheus.Histogram
}

// New registers the registration metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prelaunch_registration_submissions_total",
			Help: "Registration submissions by outcome",
		}, []string{"outcome"}),
		ByDevice: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prelaunch_registrations_by_device_total",
			Help: "Stored registrations by visitor device class",
		}, []string{"device"}),
		InsertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prelaunch_registration_insert_duration_seconds",
			Help:    "Duration of record store inserts",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementOutcome records one submission result.
func (m *Metrics) IncrementOutcome(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

// IncrementDevice records the device class of a stored registration.
func (m *Metrics) IncrementDevice(device string) {
	m.ByDevice.WithLabelValues(device).Inc()
}

// ObserveInsert records the duration of an insert.
// Call with time.Now() taken before the insert.
func (m *Metrics) ObserveInsert(start time.Time) {
	m.InsertDuration.Observe(time.Since(start).Seconds())
}
