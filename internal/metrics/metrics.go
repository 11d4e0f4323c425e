package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RoutesDispatched counts delivery routes assigned to drivers
	RoutesDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routes_dispatched_total", Help: "Delivery routes dispatched to drivers."},
	)
	// OrdersDelivered counts orders marked delivered, by how they closed
	OrdersDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_delivered_total", Help: "Orders marked delivered, by outcome."},
		[]string{"outcome"},
	)
	// GeocodeFailures counts addresses the geocoder could not resolve
	GeocodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "geocode_failures_total", Help: "Addresses that failed to geocode."},
	)
	// RouteBuildDuration tracks how long proposal building takes in seconds
	RouteBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_build_duration_seconds", Help: "Route proposal build time in seconds.", Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5}},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RoutesDispatched)
		Registry.MustRegister(OrdersDelivered)
		Registry.MustRegister(GeocodeFailures)
		Registry.MustRegister(RouteBuildDuration)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
