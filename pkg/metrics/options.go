package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the "trigml" metric name prefix. Empty keeps it.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithSubsystem overrides the "pipeline" subsystem. Empty keeps it.
func WithSubsystem(sub string) Option {
	return func(m *Manager) {
		if sub != "" {
			m.subsystem = sub
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets of the read, shaping and
// inference histograms.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) == 0 {
			return
		}
		m.latencyBuckets = append([]float64(nil), buckets...)
	}
}

// WithConstLabels attaches labels such as the campaign or host to every
// series; useful when several textfiles land in one node exporter directory.
// A key that is also a variable label (format, sample, label, component,
// error_type) is stored as const_<key>.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			if isVariableLabel(k) {
				k = constLabelPrefix + k
			}
			m.constLabels[k] = v
		}
	}
}

// WithRegistry registers the collectors on r instead of the default registerer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}
