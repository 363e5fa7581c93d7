// Package metrics exposes the portal's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_gateway_requests_total",
		Help: "Calls to the student API by operation and outcome.",
	}, []string{"op", "outcome"})

	gatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_gateway_request_duration_seconds",
		Help:    "Latency of calls to the student API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_submissions_total",
		Help: "Profile submissions by outcome.",
	}, []string{"outcome"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
)

// ObserveGateway records one student API call.
func ObserveGateway(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequests.WithLabelValues(op, outcome).Inc()
	gatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Submission counts a submission outcome: success, validation, locked, gateway, busy.
func Submission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

// Login counts a login outcome: success, invalid, not_found, locked_out.
func Login(outcome string) {
	logins.WithLabelValues(outcome).Inc()
}
