package metrics

import (
	"os"
	"path/filepath"

	"github.com/ricesearch/qac-eval/internal/evaluation"
	"github.com/ricesearch/qac-eval/internal/pkg/errors"
)

// Metrics holds the gauges and counters describing evaluation runs.
type Metrics struct {
	RunsTotal        *Counter
	RecordsTotal     *Counter
	LastRunTimestamp *Gauge
	LastRunDuration  *Gauge
	TopK             *Gauge
	Truncated        *Gauge

	Queries     *GaugeVec
	MRR         *GaugeVec
	SuccessRate *GaugeVec
}

// New creates an empty metrics set.
func New() *Metrics {
	return &Metrics{
		RunsTotal:        NewCounter("qac_eval_runs_total", "Evaluation runs recorded", nil),
		RecordsTotal:     NewCounter("qac_eval_records_total", "Query records scored across runs", nil),
		LastRunTimestamp: NewGauge("qac_eval_last_run_timestamp_seconds", "Start time of the last run", nil),
		LastRunDuration:  NewGauge("qac_eval_last_run_duration_seconds", "Wall time of the last run", nil),
		TopK:             NewGauge("qac_eval_top_k", "Metric cutoff of the last run", nil),
		Truncated:        NewGauge("qac_eval_truncated", "1 if the last run stopped at the shorter input", nil),

		Queries:     NewGaugeVec("qac_eval_queries", "Queries in each partition of the last run", []string{"partition"}),
		MRR:         NewGaugeVec("qac_eval_mrr", "Mean reciprocal rank of the last run", []string{"partition"}),
		SuccessRate: NewGaugeVec("qac_eval_success_rate", "Success rate at top_k of the last run", []string{"partition"}),
	}
}

// RecordRun updates the metrics from a finished run.
func (m *Metrics) RecordRun(run *evaluation.RunSummary) {
	m.RunsTotal.Inc()
	m.RecordsTotal.Add(int64(run.Records))
	m.LastRunTimestamp.Set(float64(run.StartedAt.UnixMilli()) / 1000)
	m.LastRunDuration.Set(run.Duration.Seconds())
	m.TopK.Set(float64(run.TopK))

	truncated := 0.0
	if run.Truncated {
		truncated = 1
	}
	m.Truncated.Set(truncated)

	for _, r := range run.Reports {
		p := string(r.Partition)
		m.Queries.WithLabels(p).Set(float64(r.Count))
		m.MRR.WithLabels(p).Set(r.MeanMRR)
		m.SuccessRate.WithLabels(p).Set(r.MeanSuccessRate)
	}
}

// WriteFile atomically replaces path with the metrics, for a node_exporter
// textfile collector.
func (m *Metrics) WriteFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.IOError(path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(m.PrometheusFormat()); err != nil {
		tmp.Close()
		return errors.IOError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.IOError(path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.IOError(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.IOError(path, err)
	}
	return nil
}
