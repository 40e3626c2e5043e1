package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/billing"
	"github.com/FACorreiaa/rocketstart-api/internal/pricing"
	"github.com/FACorreiaa/rocketstart-api/internal/routeguard"
	"github.com/FACorreiaa/rocketstart-api/pkg/config"
	"github.com/FACorreiaa/rocketstart-api/pkg/logger"
)

func TestIsAsset(t *testing.T) {
	assert.True(t, isAsset("/_next/static/app.js"))
	assert.True(t, isAsset("/favicon.ico"))
	assert.False(t, isAsset("/dashboard"))
	assert.False(t, isAsset("/profile/settings"))
}

func TestPageHandlerFallsBackToIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	h := newPageHandler(dir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>app</html>", rec.Body.String())
}

func TestPageHandlerWithoutStaticDir(t *testing.T) {
	rec := httptest.NewRecorder()
	newPageHandler("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"page":"/charts"}`, rec.Body.String())
}

type noopEvents struct{}

func (noopEvents) HandleEvent(context.Context, stripe.Event) (billing.Outcome, error) {
	return billing.OutcomeProcessed, nil
}

func TestSetupRouter_WebhookBypassesRateLimit(t *testing.T) {
	log := logger.Discard()
	catalogue, err := pricing.Load(pricing.Options{})
	require.NoError(t, err)

	deps := &Dependencies{
		Config: &config.Config{Server: config.ServerConfig{RateLimitPerSecond: 1, RateLimitBurst: 1}},
		Logger: log,
		// An unconfigured receiver answers 500 without needing a signature.
		WebhookHandler: billing.NewWebhookHandler(noopEvents{}, "", false, log),
		PricingHandler: pricing.NewHandler(catalogue, log),
		Guard:          routeguard.New(nil, nil, log),
	}
	router := SetupRouter(deps)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader("{}")))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, "delivery %d", i)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pricing", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pricing", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
