package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestWebhookEventCounts(t *testing.T) {
	before := testutil.ToFloat64(webhookEvents.WithLabelValues("checkout.session.completed", OutcomeBlocked))
	WebhookEvent("checkout.session.completed", OutcomeBlocked)
	after := testutil.ToFloat64(webhookEvents.WithLabelValues("checkout.session.completed", OutcomeBlocked))
	assert.Equal(t, before+1, after)
}

func TestAuthDataCacheCounts(t *testing.T) {
	hits := testutil.ToFloat64(authDataCache.WithLabelValues("hit"))
	misses := testutil.ToFloat64(authDataCache.WithLabelValues("miss"))

	AuthDataCacheHit()
	AuthDataCacheMiss()
	AuthDataCacheMiss()

	assert.Equal(t, hits+1, testutil.ToFloat64(authDataCache.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(authDataCache.WithLabelValues("miss")))
}
