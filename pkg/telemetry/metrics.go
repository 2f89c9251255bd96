// Package telemetry exposes Prometheus metrics for the inbox client.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricSubmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentdeck",
		Name:      "interrupt_submits_total",
		Help:      "Interrupt submissions by response type and outcome.",
	}, []string{"type", "outcome"})

	metricPendingInterrupts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentdeck",
		Name:      "interrupts_pending_total",
		Help:      "Interrupted threads currently awaiting a human decision.",
	})

	metricSessionReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentdeck",
		Name:      "session_reconnects_total",
		Help:      "Stream session reconnect attempts.",
	})

	metricPlatformRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentdeck",
		Name:      "platform_request_seconds",
		Help:      "Latency of platform REST calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
)

// Submit outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeHandled  = "handled"
)

// RecordSubmit counts one terminal submit outcome.
func RecordSubmit(responseType, outcome string) {
	metricSubmits.WithLabelValues(responseType, outcome).Inc()
}

// SetPendingInterrupts updates the pending-interrupt gauge.
func SetPendingInterrupts(n int) {
	metricPendingInterrupts.Set(float64(n))
}

// RecordSessionReconnect counts a stream reconnect attempt.
func RecordSessionReconnect() {
	metricSessionReconnects.Inc()
}

// ObservePlatformRequest records one REST call's latency.
func ObservePlatformRequest(operation, status string, elapsed time.Duration) {
	metricPlatformRequests.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus scrape handler for the local API.
func Handler() http.Handler {
	return promhttp.Handler()
}
