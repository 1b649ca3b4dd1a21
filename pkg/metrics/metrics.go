package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Define global variables for metrics.
// We use 'promauto' which automatically registers metrics without complex initialization.

var (
	// 1. Simulation Steps (Counter)
	// Counts completed step boundaries.
	SimSteps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routesim_steps_total",
			Help: "Total number of completed simulation steps",
		},
	)

	// 2. Cars by State (Gauge)
	// Set at every step boundary from the coordinator's snapshot.
	CarsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "routesim_cars",
			Help: "Number of cars per agent state",
		},
		[]string{"state"},
	)

	// 3. Active Jams (Gauge)
	ActiveJams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "routesim_active_jams",
			Help: "Number of edges with an active jam",
		},
	)

	// 4. Route Requests (Counter)
	// Labeled by outcome: ok, no_route, failed.
	RouteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routesim_route_requests_total",
			Help: "Total number of route requests issued by car agents",
		},
		[]string{"outcome"},
	)

	// 5. Traffic Reports (Counter)
	TrafficReports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routesim_traffic_reports_total",
			Help: "Total number of position/speed reports sent",
		},
	)

	// 6. Route Request Duration (Histogram)
	// Buckets cover a local server round-trip up to a stalled transport.
	RouteRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routesim_route_request_duration_seconds",
			Help:    "Duration of route request round-trips in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
	)
)
