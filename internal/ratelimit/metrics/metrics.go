package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Denied      *prometheus.CounterVec
	StoreErrors prometheus.Counter
	CircuitOpen prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Denied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prelaunch_ratelimit_denied_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}, []string{"scope"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "prelaunch_ratelimit_store_errors_total",
			Help: "Primary rate limit store failures",
		}),
		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "prelaunch_ratelimit_circuit_open",
			Help: "1 while the in-memory fallback answers rate limit checks",
		}),
	}
}

func (m *Metrics) IncrementDenied(scope string) {
	m.Denied.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	m.StoreErrors.Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
