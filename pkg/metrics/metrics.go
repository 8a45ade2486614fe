package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DonationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_donations_created_total",
		Help: "Total number of donations successfully created.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodshare_donation_transitions_total",
		Help: "Lifecycle transition attempts by action and outcome.",
	},
		[]string{"action", "outcome"},
	)

	QueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_donation_queries_total",
		Help: "Total number of donation list queries served.",
	})

	DeliveryBookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodshare_delivery_bookings_total",
		Help: "Delivery booking attempts by outcome.",
	},
		[]string{"outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodshare_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"method", "route", "status"},
	)
)
