package recognition

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK      = "ok"
	resultInvalid = "invalid"
	resultError   = "error"
)

// Metrics holds the Prometheus collectors for frame processing.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	frames        *prometheus.CounterVec
	frameDuration prometheus.Histogram
	faces         *prometheus.CounterVec
}

// NewMetrics creates and registers the frame metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "face_attendance",
			Subsystem: "frames",
			Name:      "processed_total",
			Help:      "Number of processed frames by result.",
		}, []string{"result"}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "face_attendance",
			Subsystem: "frames",
			Name:      "duration_seconds",
			Help:      "Time taken to process a frame, including the embedding call.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		faces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "face_attendance",
			Subsystem: "frames",
			Name:      "faces_total",
			Help:      "Number of faces seen in frames, by whether they matched a student.",
		}, []string{"matched"}),
	}
	if reg != nil {
		reg.MustRegister(m.frames, m.frameDuration, m.faces)
	}
	return m
}

func (m *Metrics) frame(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(result).Inc()
	if took > 0 {
		m.frameDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) countFaces(detected, matched int) {
	if m == nil {
		return
	}
	m.faces.WithLabelValues("true").Add(float64(matched))
	m.faces.WithLabelValues("false").Add(float64(detected - matched))
}
