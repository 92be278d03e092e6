package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coinforge/cryptoetl-backend/internal/model"
)

var (
	sourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptoetl",
		Subsystem: "source_client",
		Name:      "requests_total",
		Help:      "Count of upstream API requests.",
	}, []string{"source", "operation", "status"})
	sourceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cryptoetl",
		Subsystem: "source_client",
		Name:      "request_duration_seconds",
		Help:      "Duration of upstream API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source", "operation", "status"})
)

// SourceClient tracks metrics for HTTP calls to one upstream data provider.
type SourceClient struct {
	source model.Source
}

// NewSourceClient constructs a metrics collector for upstream API calls.
func NewSourceClient(source model.Source) *SourceClient {
	if source == "" {
		source = "unknown"
	}
	return &SourceClient{source: source}
}

// Observe records a single upstream request outcome and duration.
func (m SourceClient) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	sourceRequestsTotal.WithLabelValues(string(m.source), operation, status).Inc()
	sourceRequestDuration.WithLabelValues(string(m.source), operation, status).Observe(time.Since(started).Seconds())
}
