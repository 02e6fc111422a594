// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditflow_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auditflow_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	votesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditflow_arbiter_votes_total",
		Help: "Arbiter votes accepted.",
	})

	pollsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditflow_polls_settled_total",
		Help: "Settled arbitration polls by final post status.",
	}, []string{"target"})

	sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditflow_sweep_runs_total",
		Help: "Deadline sweeper passes.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(route string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// VoteRecorded counts one accepted arbiter vote.
func VoteRecorded() {
	votesRecorded.Inc()
}

// PollSettled counts one settled poll.
func PollSettled(target string) {
	pollsSettled.WithLabelValues(target).Inc()
}

// SweepRun counts one sweeper pass.
func SweepRun() {
	sweepRuns.Inc()
}
