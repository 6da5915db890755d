// Package metrics registers the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SnapshotsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prodhub_snapshots_applied_total",
		Help: "Collection snapshots delivered and applied to the mirror",
	}, []string{"collection"})

	SnapshotRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "prodhub_snapshot_records",
		Help: "Number of records in the most recent snapshot",
	}, []string{"collection"})

	SubscriptionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prodhub_subscription_failures_total",
		Help: "Subscription delivery errors by collection",
	}, []string{"collection"})

	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prodhub_mutations_total",
		Help: "Mutations sent to the backing store by collection, kind and status",
	}, []string{"collection", "kind", "status"})

	CascadeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prodhub_cascade_failures_total",
		Help: "Cascading deletes that failed, by parent collection",
	}, []string{"collection"})

	ProgressWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodhub_progress_writes_total",
		Help: "Derived project progress values persisted",
	})

	CalendarFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prodhub_calendar_fetches_total",
		Help: "External calendar fetches by status",
	}, []string{"status"})

	CalendarFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prodhub_calendar_fetch_duration_seconds",
		Help:    "Time to fetch and normalize external calendar events",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	SuggestRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prodhub_suggest_requests_total",
		Help: "Task suggestion requests by status",
	}, []string{"status"})
)

// Status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
