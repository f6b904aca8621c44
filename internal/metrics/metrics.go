// Package metrics provides Prometheus metrics for netwarden.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "netwarden"

var (
	// BuildInfo exposes the running version as a constant gauge.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information (always 1).",
	}, []string{"version", "go_version"})

	// ApplyTotal counts enable/disable applications by block category,
	// direction, and outcome.
	ApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "apply_total",
		Help:      "Block enable/disable applications by outcome.",
	}, []string{"category", "direction", "outcome"})

	// ApplyTargetFailures counts per-target failures during fan-out applies.
	ApplyTargetFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "apply_target_failures_total",
		Help:      "Per-target failures during multi-target applies.",
	}, []string{"target"})

	// RuleCacheRefreshTotal counts firewall rule table refreshes by outcome.
	RuleCacheRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rule_cache_refresh_total",
		Help:      "Firewall rule table refreshes by outcome.",
	}, []string{"outcome"})

	// StatusQueriesTotal counts status reads by category and result.
	StatusQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "status_queries_total",
		Help:      "Block status queries by category and normalized result.",
	}, []string{"category", "result"})

	// DriftChecksTotal counts drift audit checks by outcome.
	DriftChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "drift_checks_total",
		Help:      "Drift audit checks by outcome.",
	}, []string{"outcome"})
)

// SetBuildInfo records the build information gauge.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}
