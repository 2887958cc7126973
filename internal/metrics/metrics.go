package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// SyncRunsTotal counts validation loop runs by outcome
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sync_runs_total",
			Help: "Total number of validation loop runs",
		},
		[]string{"outcome"},
	)

	// SyncRunDuration tracks validation loop wall time
	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_sync_run_duration_seconds",
			Help:    "Validation loop duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// SyncAttempts tracks the number of comparison passes of the last run
	SyncAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_sync_last_run_attempts",
			Help: "Comparison passes performed by the last validation loop run",
		},
	)

	// TableDifferences tracks differences found per table in the last comparison pass
	TableDifferences = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crm_sync_table_differences",
			Help: "Differences found by the last comparison pass by table and kind",
		},
		[]string{"table", "kind"},
	)

	// RowsCopied counts rows reloaded into development by the corrective synchronizer
	RowsCopied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sync_rows_copied_total",
			Help: "Total number of rows copied from production to development",
		},
		[]string{"table"},
	)

	// PromotionsTotal counts promoted development records by table and status
	PromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sync_promotions_total",
			Help: "Total number of development records promoted to production",
		},
		[]string{"table", "status"},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sync_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// PlaceholderMode is 1 while the server runs without a development database
	PlaceholderMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_placeholder_mode",
			Help: "Whether the server runs against the in-memory placeholder database",
		},
	)
)

// Push sends the default registry to a Prometheus push gateway.
// The sync CLI is short lived, so its metrics would never be scraped otherwise.
func Push(gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
