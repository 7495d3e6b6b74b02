// Package metrics holds the Prometheus collectors shared by the bot engines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	XPGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_xp_granted_total",
			Help: "XP granted to members, by source",
		},
		[]string{"source"},
	)
	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_level_ups_total",
			Help: "Level-up transitions",
		},
	)
	LedgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_ledger_operations_total",
			Help: "Ledger mutations, by field and outcome",
		},
		[]string{"field", "outcome"},
	)
	TxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_store_tx_retries_total",
			Help: "Store transactions retried after a serialization conflict",
		},
	)
	CommissionsPaid = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commissions_paid_total",
			Help: "Affiliate commissions credited, by kind (sale, cashout)",
		},
		[]string{"kind"},
	)
	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_sweep_runs_total",
			Help: "Scheduled job runs, by job and outcome",
		},
		[]string{"job", "outcome"},
	)
	SweepEntityFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_sweep_entity_failures_total",
			Help: "Per-entity failures skipped inside a batch sweep",
		},
		[]string{"job"},
	)
	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_sweep_duration_seconds",
			Help:    "Scheduled job run duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
	AICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_ai_calls_total",
			Help: "Text generation calls, by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)
	Interactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_interactions_total",
			Help: "Platform interactions handled, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	FeedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_feed_clients",
			Help: "Connected live feed clients",
		},
	)
	FeedDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_feed_dropped_clients_total",
			Help: "Feed clients disconnected because they could not keep up",
		},
	)
)

func init() {
	prometheus.MustRegister(XPGranted)
	prometheus.MustRegister(LevelUps)
	prometheus.MustRegister(LedgerOps)
	prometheus.MustRegister(TxRetries)
	prometheus.MustRegister(CommissionsPaid)
	prometheus.MustRegister(SweepRuns)
	prometheus.MustRegister(SweepEntityFailures)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(AICalls)
	prometheus.MustRegister(Interactions)
	prometheus.MustRegister(FeedClients)
	prometheus.MustRegister(FeedDropped)
}

// Outcome labels.
const (
	OK       = "ok"
	Rejected = "rejected"
	Failed   = "failed"
)
