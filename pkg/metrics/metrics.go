package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marek-kar/codeaudit/pkg/model"
)

// Metrics collects counters for one audit process. It owns its registry so
// runs and tests never share state.
type Metrics struct {
	registry *prometheus.Registry

	FilesTotal      *prometheus.CounterVec
	ViolationsTotal *prometheus.CounterVec
	FindingsTotal   *prometheus.CounterVec
	SemanticSkipped prometheus.Counter
	ScanDuration    prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FilesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_files_total",
			Help: "Files audited, by outcome status",
		}, []string{"status"}),
		ViolationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_violations_total",
			Help: "Violations reported, by severity and pass",
		}, []string{"severity", "pass"}),
		FindingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_rule_evaluations_total",
			Help: "Rule evaluations, by finding status",
		}, []string{"status"}),
		SemanticSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "audit_pass2_skipped_total",
			Help: "Files whose semantic pass was skipped after a CRITICAL mechanical violation",
		}),
		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_scan_duration_seconds",
			Help:    "Time spent reading and scanning one file",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveOutcome records one file's outcome and how long it took.
func (m *Metrics) ObserveOutcome(o model.FileOutcome, took time.Duration) {
	m.FilesTotal.WithLabelValues(string(o.Status)).Inc()
	m.ScanDuration.Observe(took.Seconds())
	if o.Result == nil {
		return
	}
	for _, v := range o.Result.Violations {
		m.ViolationsTotal.WithLabelValues(string(v.Severity), v.Pass.String()).Inc()
	}
	for _, p := range []model.PassResult{o.Result.Pass1, o.Result.Pass2} {
		for _, f := range p.Findings {
			m.FindingsTotal.WithLabelValues(string(f.Status)).Inc()
		}
	}
	if o.Result.Pass1Only() {
		m.SemanticSkipped.Inc()
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
