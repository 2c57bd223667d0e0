// Package metrics holds the Prometheus collectors shared by the gateway
// client, the prober and the reconciliation engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wgprov_gateway_requests_total",
			Help: "Gateway API calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wgprov_gateway_request_duration_seconds",
			Help:    "Gateway API call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	reconcileActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wgprov_reconcile_actions_total",
			Help: "Mutating reconciliation actions applied to gateways.",
		},
		[]string{"action"},
	)

	reconcileServerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wgprov_reconcile_server_failures_total",
		Help: "Reconciliation passes aborted for a single server.",
	})

	serverUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wgprov_server_up",
			Help: "1 when the last probe of a server succeeded, 0 otherwise.",
		},
		[]string{"server"},
	)

	passDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wgprov_pass_duration_seconds",
			Help:    "Duration of periodic probe and sync passes.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"task"},
	)

	registerOnce sync.Once
)

// Init registers every collector in the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			gatewayRequestsTotal,
			gatewayRequestDuration,
			reconcileActionsTotal,
			reconcileServerFailures,
			serverUp,
			passDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGatewayRequest records one gateway call.
func ObserveGatewayRequest(method, outcome string, elapsed time.Duration) {
	gatewayRequestsTotal.WithLabelValues(method, outcome).Inc()
	gatewayRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ReconcileAction counts a create, update, delete, repair or rotate.
func ReconcileAction(action string) {
	reconcileActionsTotal.WithLabelValues(action).Inc()
}

// ReconcileServerFailed counts an aborted per-server pass.
func ReconcileServerFailed() {
	reconcileServerFailures.Inc()
}

// SetServerUp publishes the probe outcome of a server.
func SetServerUp(server string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	serverUp.WithLabelValues(server).Set(v)
}

// ObservePass records how long a periodic task took.
func ObservePass(task string, elapsed time.Duration) {
	passDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}
