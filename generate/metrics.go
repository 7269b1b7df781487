package generate

import (
	"github.com/benoitkugler/svgvariants/diag"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the run statistics, exported to a node exporter
// textfile when configured.
type metrics struct {
	registry *prometheus.Registry

	sources     *prometheus.CounterVec // by outcome: ok, empty, failed
	variations  *prometheus.CounterVec // by result: ok, failed
	artifacts   *prometheus.CounterVec // by kind: downloadable, displayable, thumbnail
	diagnostics *prometheus.GaugeVec   // by severity, for the last run
	duration    prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "svgvariants",
			Name:      "sources_total",
			Help:      "Number of processed source templates, by outcome.",
		}, []string{"outcome"}),
		variations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "svgvariants",
			Name:      "variations_total",
			Help:      "Number of attempted variations, by result.",
		}, []string{"result"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "svgvariants",
			Name:      "artifacts_written_total",
			Help:      "Number of written files, by kind.",
		}, []string{"kind"}),
		diagnostics: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "svgvariants",
			Name:      "diagnostics",
			Help:      "Number of diagnostics reported by the last run, by severity.",
		}, []string{"severity"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "svgvariants",
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
	}
	m.registry.MustRegister(m.sources, m.variations, m.artifacts, m.diagnostics, m.duration)
	return m
}

func (m *metrics) observeDiagnostics(c *diag.Collector) {
	for _, s := range []diag.Severity{diag.Info, diag.Warning, diag.Error, diag.Critical} {
		m.diagnostics.WithLabelValues(s.String()).Set(float64(c.Count(s)))
	}
}

// writeTextfile writes the metrics in the text exposition format.
func (m *metrics) writeTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.registry)
}
