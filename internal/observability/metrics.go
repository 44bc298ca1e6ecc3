package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters, registered on the default registry and exposed at
// /metrics.
var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ridepool_bookings_created_total",
		Help: "Bookings opened by passengers.",
	})

	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ridepool_booking_transitions_total",
		Help: "Successful booking status transitions, labeled by target status.",
	}, []string{"to"})

	PoolJoinAccepts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ridepool_pool_join_accepts_total",
		Help: "Pool join requests accepted by drivers.",
	})

	CapacityConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ridepool_capacity_conflicts_total",
		Help: "Seat claims rejected because the vehicle was full.",
	})
)

// HTTP middleware metrics.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ridepool_http_requests_total",
		Help: "HTTP requests served, labeled by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ridepool_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
