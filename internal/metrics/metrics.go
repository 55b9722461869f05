// Package metrics exposes the Prometheus instrumentation for the query
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus collectors for the assistant.
type Registry struct {
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	ResolverScore prometheus.Histogram
	LLMRequests   *prometheus.CounterVec
	DatasetRows   prometheus.Gauge
	DatasetSwaps  prometheus.Counter
}

// NewRegistry creates and registers all collectors against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reassistant_queries_total",
				Help: "Queries processed, by intent and terminal outcome",
			},
			[]string{"intent", "outcome"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reassistant_query_duration_seconds",
				Help:    "Duration of query pipeline stages in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		ResolverScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reassistant_resolver_score",
				Help:    "Winning fuzzy-match scores on the 0-100 scale",
				Buckets: []float64{0, 50, 60, 70, 80, 85, 90, 95, 100},
			},
		),
		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reassistant_llm_requests_total",
				Help: "LLM boundary calls, by kind (classify/respond) and result",
			},
			[]string{"kind", "result"},
		),
		DatasetRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "reassistant_dataset_rows",
				Help: "Row count of the live ledger dataset",
			},
		),
		DatasetSwaps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reassistant_dataset_swaps_total",
				Help: "Successful dataset load-and-swap operations",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		r.QueriesTotal, r.QueryDuration, r.ResolverScore,
		r.LLMRequests, r.DatasetRows, r.DatasetSwaps,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("metric registration failed")
		}
	}
	return r
}
