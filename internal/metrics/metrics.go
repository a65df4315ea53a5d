// Package metrics records composition and apply outcomes in a private
// Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wetwire_topology"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	StageRuns        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	Provisioned      *prometheus.CounterVec
	ProvisionLatency *prometheus.HistogramVec
}

// New registers the collectors in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Composition stage runs by stage and outcome.",
		}, []string{"stage", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Composition stage duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"stage"}),
		Provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descriptors_provisioned_total",
			Help:      "Descriptors handed to the backend by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ProvisionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provision_duration_seconds",
			Help:      "Backend provisioning latency by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	m.Registry.MustRegister(m.StageRuns, m.StageDuration, m.Provisioned, m.ProvisionLatency)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveStage records one stage run.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(stage, outcome(err)).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveProvision records one backend call.
func (m *Metrics) ObserveProvision(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Provisioned.WithLabelValues(kind, outcome(err)).Inc()
	m.ProvisionLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// WriteFile writes the registry in text exposition format to path.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
