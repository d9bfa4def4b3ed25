// Package metrics holds the prometheus instruments for the poll pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorebot_poll_cycles_total",
		Help: "Reconciliation cycles executed.",
	})
	SubscriptionsChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorebot_subscriptions_checked_total",
		Help: "Subscriptions examined across all cycles.",
	})
	UpdatesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorebot_updates_posted_total",
		Help: "Score-update and final messages persisted.",
	})
	UpstreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorebot_upstream_errors_total",
		Help: "Failed scoreboard fetches (per sport group).",
	})
	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorebot_push_failures_total",
		Help: "Best-effort push deliveries that failed (swallowed).",
	})
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scorebot_poll_cycle_seconds",
		Help:    "Wall time of one reconciliation cycle.",
		Buckets: prometheus.DefBuckets,
	})
)
