// Package metrics defines and registers all custom Prometheus metrics for the
// accounts service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import and
// exposed by the HTTP router at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── Registration metrics ──────────────────────────────────────────────────────

// UsersCreatedTotal counts registration attempts.
// Label:
//   - result: "created", "invalid" or "error"
var UsersCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_created_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// ValidationFailuresTotal counts individual rule violations on registration.
// Labels:
//   - field: "name", "email", "password", "password_confirmation"
//   - kind: "blank", "taken", "too_short", "confirmation"
var ValidationFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_failures_total",
		Help:      "Total number of registration rule violations, by field and kind.",
	},
	[]string{"field", "kind"},
)

// ── Authentication metrics ────────────────────────────────────────────────────

// AuthenticationsTotal counts credential checks.
// Label:
//   - result: "success", "failure" or "error"
var AuthenticationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authentications_total",
		Help:      "Total number of credential checks, by result.",
	},
	[]string{"result"},
)

// ── Storage metrics ───────────────────────────────────────────────────────────

// UserCacheTotal counts user cache lookups.
// Label:
//   - result: "hit", "miss" or "error"
var UserCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_cache_total",
		Help:      "Total number of user cache lookups, by result.",
	},
	[]string{"result"},
)

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestDuration measures request latency.
// Labels:
//   - method: HTTP method
//   - path: the matched route template (e.g. "/users")
//   - status: response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests, by route and status.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"method", "path", "status"},
)
