package services

import (
	"errors"
	"strconv"
	"time"

	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbound calls to the Spotify Web API.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotremote_upstream_requests_total",
			Help: "Total number of Spotify API requests (by endpoint, method and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spotremote_upstream_request_duration_seconds",
			Help:    "Duration of Spotify API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms → ~10s
		},
		[]string{"endpoint", "method"},
	)

	// Dispatched playback actions by outcome.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotremote_dispatch_total",
			Help: "Total number of dispatched playback actions.",
		},
		[]string{"action", "result"}, // result = "ok" | "auth" | "rejected" | "error"
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spotremote_dispatch_duration_seconds",
			Help:    "End-to-end time to dispatch a playback action.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// Token endpoint exchanges.
	TokenOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotremote_token_operations_total",
			Help: "Authorization-code exchanges and refreshes by result.",
		},
		[]string{"op", "result"}, // op = "exchange" | "refresh"
	)
)

func observeUpstream(endpoint, method string, status int, start time.Time) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
}

func observeDispatch(action string, err error, start time.Time) {
	DispatchTotal.WithLabelValues(action, resultLabel(err)).Inc()
	DispatchDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}

func observeToken(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	TokenOperationsTotal.WithLabelValues(op, result).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case shared.IsAuthError(err):
		return "auth"
	case errors.Is(err, shared.ErrUpstreamRejected):
		return "rejected"
	default:
		return "error"
	}
}
