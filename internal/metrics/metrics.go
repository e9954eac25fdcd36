// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route pattern, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readthis_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes request latency by route pattern and method.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "readthis_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// CoverLookups counts cover fallback outcomes per source.
	CoverLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readthis_cover_lookups_total",
		Help: "Book cover lookups by source and outcome.",
	}, []string{"source", "outcome"})

	// RecommendationRequests counts chat completion calls by outcome.
	RecommendationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readthis_recommendation_requests_total",
		Help: "Book recommendation upstream calls by outcome.",
	}, []string{"outcome"})

	// LiveConnections is the number of open WebSocket connections.
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "readthis_live_connections",
		Help: "Open WebSocket connections.",
	})
)
