package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики выполнения сценариев.
type Metrics struct {
	StepsTotal     *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	StreamMessages *prometheus.CounterVec
	ScenarioRuns   *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// nil означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		StepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trotsky_steps_total",
			Help: "Total executed scenario steps",
		}, []string{"step", "status"}),

		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trotsky_step_duration_seconds",
			Help:    "Scenario step execution time",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),

		StreamMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trotsky_stream_messages_total",
			Help: "Total stream messages received",
		}, []string{"collection"}),

		ScenarioRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trotsky_scenario_runs_total",
			Help: "Total scenario runs",
		}, []string{"scenario", "status"}),
	}
}

// ObserveRun учитывает завершённый запуск сценария.
func (m *Metrics) ObserveRun(scenario string, err error) {
	m.ScenarioRuns.WithLabelValues(scenario, statusLabel(err == nil)).Inc()
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
