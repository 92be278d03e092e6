package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptoetl",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Count of ingestion runs by terminal status.",
	}, []string{"source", "family", "coin", "status"})

	pipelineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cryptoetl",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of one ingestion run end to end.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"source", "family", "coin", "status"})

	pipelineRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptoetl",
		Subsystem: "pipeline",
		Name:      "records_total",
		Help:      "Count of records by pipeline outcome.",
	}, []string{"source", "family", "coin", "outcome"})
)

// Pipeline tracks run-level metrics for the ingestion pipeline.
type Pipeline struct{}

// NewPipeline creates a Pipeline metrics collector.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// ObserveRun records one finished run with its terminal status.
func (m Pipeline) ObserveRun(scope model.Scope, status model.RunStatus, started time.Time) {
	coin := scope.Coin
	if coin == "" {
		coin = "all"
	}

	pipelineRunsTotal.WithLabelValues(string(scope.Source), string(scope.Family), string(coin), string(status)).Inc()
	pipelineRunDuration.WithLabelValues(string(scope.Source), string(scope.Family), string(coin), string(status)).
		Observe(time.Since(started).Seconds())
}

// ObserveRecords records per-record outcomes of one finished run.
func (m Pipeline) ObserveRecords(scope model.Scope, inserted, updated, rejected, skipped int) {
	coin := scope.Coin
	if coin == "" {
		coin = "all"
	}
	labels := []string{string(scope.Source), string(scope.Family), string(coin)}

	pipelineRecordsTotal.WithLabelValues(append(labels, "inserted")...).Add(float64(inserted))
	pipelineRecordsTotal.WithLabelValues(append(labels, "updated")...).Add(float64(updated))
	pipelineRecordsTotal.WithLabelValues(append(labels, "rejected")...).Add(float64(rejected))
	pipelineRecordsTotal.WithLabelValues(append(labels, "skipped")...).Add(float64(skipped))
}
