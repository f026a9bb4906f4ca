// Package metrics exposes pipeline outcomes as Prometheus series.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements the service observer on top of Prometheus collectors.
type Recorder struct {
	turns        *prometheus.CounterVec
	generation   *prometheus.HistogramVec
	memoryErrors *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		return nil, errors.New("metrics: registerer must not be nil")
	}
	r := &Recorder{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "honeypot_turns_total",
			Help: "Conversation turns processed, by outcome.",
		}, []string{"outcome"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "honeypot_generation_seconds",
			Help:    "Latency of persona reply generation.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"result"}),
		memoryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "honeypot_memory_errors_total",
			Help: "Memory store failures, by operation.",
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{r.turns, r.generation, r.memoryErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) TurnCompleted(outcome string) {
	r.turns.WithLabelValues(outcome).Inc()
}

func (r *Recorder) GenerationFinished(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.generation.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (r *Recorder) MemoryFailed(op string) {
	r.memoryErrors.WithLabelValues(op).Inc()
}
