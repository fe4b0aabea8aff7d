// Package metrics holds the Prometheus collectors for the start flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heard"

var (
	// Registrations counts sign-up attempts by outcome
	// (success, missing_fields, username_taken, email_in_use, ...).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Sign-up attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SignIns counts sign-in attempts by outcome and identifier kind (email|username).
	SignIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signins_total",
			Help:      "Sign-in attempts by outcome and identifier kind",
		},
		[]string{"outcome", "identifier"},
	)

	// AvailabilityLookups counts username availability lookups by result
	// (available, taken, error).
	AvailabilityLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "username_lookups_total",
			Help:      "Username availability lookups by result",
		},
		[]string{"result"},
	)

	// Compensations counts credential rollbacks after a failed profile write.
	Compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_compensations_total",
			Help:      "Credential rollbacks by result (deleted, orphaned)",
		},
		[]string{"result"},
	)

	// ProviderLatency observes identity provider call latency.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "identity_provider_seconds",
			Help:      "Identity provider call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
