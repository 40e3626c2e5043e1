package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rocketstart",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rocketstart",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rocketstart",
		Name:      "webhook_events_total",
		Help:      "Billing webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	authDataCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rocketstart",
		Name:      "auth_data_cache_total",
		Help:      "Auth data cache lookups by result.",
	}, []string{"result"})

	authDataStale = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rocketstart",
		Name:      "auth_data_stale_responses_total",
		Help:      "Auth data responses discarded because a newer one was applied.",
	})

	tasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rocketstart",
		Name:      "background_tasks_total",
		Help:      "Fire-and-forget tasks by name and result.",
	}, []string{"name", "result"})
)

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeBlocked   = "blocked"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

func ObserveHTTP(route, method, status string, seconds float64) {
	httpRequests.WithLabelValues(route, method, status).Inc()
	httpDuration.WithLabelValues(route, method).Observe(seconds)
}

func WebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func AuthDataCacheHit()  { authDataCache.WithLabelValues("hit").Inc() }
func AuthDataCacheMiss() { authDataCache.WithLabelValues("miss").Inc() }
func AuthDataStale()     { authDataStale.Inc() }

// Task records a background task result: ok, failed, panic or dropped.
func Task(name, result string) {
	tasks.WithLabelValues(name, result).Inc()
}
