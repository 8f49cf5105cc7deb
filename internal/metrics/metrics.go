// Package metrics exposes the relay's Prometheus instrumentation. All
// collectors register on the default registry; /metrics serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UsersRegistered counts first-contact record creations.
	UsersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whispr_users_registered_total",
		Help: "Total number of new user records created",
	})

	// Relays counts relay attempts by payload kind and outcome
	// (delivered, target_gone, delivery_failed, store_failed).
	Relays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whispr_relays_total",
		Help: "Total relay attempts by payload kind and outcome",
	}, []string{"kind", "outcome"})

	// DeliveryDuration tracks outbound delivery latency.
	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whispr_delivery_duration_seconds",
		Help:    "Outbound Telegram delivery duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// FloodDrops counts updates dropped by the per-chat rate limiter.
	FloodDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whispr_flood_drops_total",
		Help: "Total updates dropped by flood control",
	})

	// CodeCollisions counts generation retries caused by code collisions.
	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whispr_code_collisions_total",
		Help: "Total code generation collision retries",
	})
)
