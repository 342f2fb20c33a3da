package geo

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts provider calls by operation and outcome.
type Metrics struct {
	Calls *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addressbook",
		Subsystem: "geocoder",
		Name:      "calls_total",
		Help:      "Geocoding provider calls partitioned by operation and outcome.",
	}, []string{"op", "outcome"})

	if err := reg.Register(calls); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register geocoder collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing geocoder collector has unexpected type %T", already.ExistingCollector)
		}
		calls = existing
	}
	return &Metrics{Calls: calls}, nil
}

func (m *Metrics) observe(op, outcome string) {
	if m == nil || m.Calls == nil {
		return
	}
	m.Calls.WithLabelValues(op, outcome).Inc()
}
