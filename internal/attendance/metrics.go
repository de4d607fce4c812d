package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "face_attendance"

// Metrics exposes session counts and transition counters to Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registerer  prometheus.Registerer
	transitions *prometheus.CounterVec
	sweeps      *prometheus.CounterVec
}

// NewMetrics creates and registers the tracker metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registerer: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "transitions_total",
			Help:      "Number of session transitions by kind.",
		}, []string{"kind"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "sweeps_total",
			Help:      "Number of timeout sweeps by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.transitions, m.sweeps)
	return m
}

// bind registers gauges that read the tracker state at scrape time.
func (m *Metrics) bind(t *Tracker) {
	if m == nil {
		return
	}
	m.registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "logged_in",
			Help:      "Number of students currently logged in.",
		}, func() float64 {
			loggedIn, _ := t.Counts()
			return float64(loggedIn)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "known",
			Help:      "Number of students with a session record.",
		}, func() float64 {
			_, total := t.Counts()
			return float64(total)
		}),
	)
}

func (m *Metrics) transition(kind EventKind) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) sweep(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweeps.WithLabelValues(result).Inc()
}
