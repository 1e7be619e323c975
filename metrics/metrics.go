package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/errors"
)

const namespace = "threatmap"

// Lookup outcomes.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeIgnored = "ignored"
)

// Metrics holds Prometheus collectors of one run. Each instance has its
// own registry so runs never share state.
type Metrics struct {
	Records        prometheus.Counter
	Lookups        *prometheus.CounterVec // labels: outcome={hit,miss,ignored}
	Cache          *prometheus.CounterVec // labels: result={hit,miss}
	Locations      prometheus.Gauge
	Count          prometheus.Counter
	RunDuration    prometheus.Gauge
	LastSuccessful prometheus.Gauge

	registry *prometheus.Registry
}

// Registry returns a registry with all collectors of m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MarkSuccess records a duration and a finish time of a successful run.
func (m *Metrics) MarkSuccess(duration time.Duration, finishedAt time.Time) {
	m.RunDuration.Set(duration.Seconds())
	m.LastSuccessful.Set(float64(finishedAt.Unix()))
}

// WriteTextfile writes all metrics in a format of node_exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Annotatef(err, "cannot write metrics to %s", path)
	}

	return nil
}

// New creates metrics with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Total threat records read from the input.",
		}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Threat records by lookup outcome.",
		}, []string{"outcome"}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_total",
			Help:      "Resolver cache lookups by result.",
		}, []string{"result"}),
		Locations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locations",
			Help:      "Distinct locations in the last report.",
		}),
		Count: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "count_total",
			Help:      "Sum of threat counts attributed to locations.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last successful run.",
		}),
		LastSuccessful: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Records,
		m.Lookups,
		m.Cache,
		m.Locations,
		m.Count,
		m.RunDuration,
		m.LastSuccessful,
	)

	return m
}
