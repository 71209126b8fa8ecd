package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	SyncOutcomes      *prometheus.CounterVec
	TargetResult      *prometheus.CounterVec
	TargetDuration    *prometheus.HistogramVec
	InventoryRequests *prometheus.CounterVec
	TargetBackoff     *prometheus.GaugeVec
	DeletionsTotal    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		SyncOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_sync_repo_outcomes_total",
			Help: "per-repo sync outcomes by provider and result",
		}, []string{"provider", "outcome"}),
		TargetResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_sync_target_runs_total",
			Help: "target runs by provider and final status",
		}, []string{"provider", "status"}),
		TargetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mirror_sync_target_duration_seconds",
			Help:    "wall time spent syncing one target",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		InventoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_sync_inventory_requests_total",
			Help: "inventory loads by provider and cache hit/miss",
		}, []string{"provider", "source"}),
		TargetBackoff: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mirror_sync_target_backoff_seconds",
			Help: "seconds remaining before a backed-off target is retried",
		}, []string{"target"}),
		DeletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_sync_deletions_total",
			Help: "missing-remote repos handled by reconciliation policy",
		}, []string{"policy"}),
	}

	prometheus.MustRegister(
		m.SyncOutcomes,
		m.TargetResult,
		m.TargetDuration,
		m.InventoryRequests,
		m.TargetBackoff,
		m.DeletionsTotal,
	)
	return m
}
