package simulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the simulator's Prometheus collectors.
type Metrics struct {
	Runs         *prometheus.CounterVec
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	RunDuration  prometheus.Histogram
	ActiveRuns   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipescope_simulator_runs_total",
				Help: "Total number of simulated runs by outcome",
			},
			[]string{"outcome"},
		),
		Steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipescope_simulator_steps_total",
				Help: "Total number of simulated steps by final status",
			},
			[]string{"status"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipescope_simulator_step_duration_seconds",
				Help:    "Wall time spent on a simulated step",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipescope_simulator_run_duration_seconds",
				Help:    "Wall time of a simulated run",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipescope_simulator_active_runs",
				Help: "Number of runs in progress",
			},
		),
	}
}
