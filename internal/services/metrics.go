package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflections_resolve_total",
		Help: "Resolved reflections by where the content came from (cache, source, error).",
	}, []string{"source"})

	writebackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflections_writeback_failures_total",
		Help: "Cache write-backs that failed after a source fetch.",
	})

	deliveryTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflections_delivery_targets_total",
		Help: "Per-target webhook delivery outcomes.",
	}, []string{"outcome"})

	backfillOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflections_backfill_outcomes_total",
		Help: "Backfill slot outcomes by status.",
	}, []string{"status"})
)
