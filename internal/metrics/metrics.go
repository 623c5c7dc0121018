// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datagage_http_requests_total",
			Help: "HTTP requests served, by route and status",
		},
		[]string{"method", "route", "status"},
	)
	upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datagage_upstream_calls_total",
			Help: "Outbound calls to external platforms",
		},
		[]string{"upstream", "op", "status"},
	)
	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datagage_upstream_call_duration_milliseconds",
			Help:    "Outbound call duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"upstream", "op"},
	)
	workflowStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datagage_workflow_stage_total",
			Help: "Source workflow stage outcomes",
		},
		[]string{"workflow", "stage", "outcome"},
	)
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datagage_cache_lookups_total",
			Help: "Analytics cache lookups",
		},
		[]string{"cache", "result"},
	)
	insights = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datagage_insights_total",
			Help: "Generated insights by origin",
		},
		[]string{"mode", "source"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests)
	prometheus.MustRegister(upstreamCalls)
	prometheus.MustRegister(upstreamDuration)
	prometheus.MustRegister(workflowStages)
	prometheus.MustRegister(cacheLookups)
	prometheus.MustRegister(insights)
}

func ObserveHTTP(method, route string, status int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObserveUpstream records one outbound call. status is the HTTP status, or 0
// when the request never got a response.
func ObserveUpstream(upstream, op string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamCalls.WithLabelValues(upstream, op, label).Inc()
	upstreamDuration.WithLabelValues(upstream, op).Observe(float64(elapsed.Milliseconds()))
}

func WorkflowStage(workflow, stage string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	workflowStages.WithLabelValues(workflow, stage, outcome).Inc()
}

func CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

func Insight(mode, source string) {
	insights.WithLabelValues(mode, source).Inc()
}
