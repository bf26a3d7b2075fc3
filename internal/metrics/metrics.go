package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Gate metrics
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_gate_decisions_total",
			Help: "Ownership gate outcomes",
		},
		[]string{"outcome"}, // "granted", "denied", "unavailable", "invalid", "canceled"
	)

	GateQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatrelay_gate_query_duration_seconds",
			Help:    "Per-wallet ownership query latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Wallet metrics
	WalletSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_wallet_switches_total",
			Help: "Sponsor wallet coordination outcomes",
		},
		[]string{"outcome"}, // "ready", "switched", "failed", "no_sponsor"
	)

	// Relay metrics
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_messages_appended_total",
			Help: "Messages appended to the canonical log",
		},
		[]string{"kind"},
	)

	RelayRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_relay_retries_total",
			Help: "Retried canonical store operations",
		},
	)

	RelayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_relay_latency_seconds",
			Help:    "Canonical store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"op"},
	)

	// Cache metrics
	ReadCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_read_cache_lookups_total",
			Help: "Read cache lookups",
		},
		[]string{"result"}, // "hit", "miss", "expired"
	)

	PreviewCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_preview_cache_evictions_total",
			Help: "Preview cache entries evicted by TTL",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
