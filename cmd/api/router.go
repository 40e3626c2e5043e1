package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
	"github.com/FACorreiaa/rocketstart-api/pkg/interceptors"
)

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	r := mux.NewRouter()

	// Middleware chain, outermost first
	r.Use(
		interceptors.NewRequestIDMiddleware("X-Request-ID"),
		interceptors.NewRecoveryMiddleware(deps.Logger),
		interceptors.NewLoggingMiddleware(deps.Logger),
		interceptors.NewMetricsMiddleware(),
	)

	// Provider deliveries come from a handful of IPs; keep them off the limiter.
	r.Handle("/api/stripe/webhook", deps.WebhookHandler).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := interceptors.NewClientLimiter(
			float64(deps.Config.Server.RateLimitPerSecond),
			deps.Config.Server.RateLimitBurst,
		)
		api.Use(interceptors.NewRateLimitMiddleware(limiter))
	}

	registerAPIRoutes(api, deps)
	registerAuthRoutes(r, deps)
	registerUtilityRoutes(r, deps)
	registerPageRoutes(r, deps)

	// Enable CORS for the web app origin(s)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	return corsHandler.Handler(r)
}

// registerAPIRoutes registers the rate-limited JSON endpoints
func registerAPIRoutes(api *mux.Router, deps *Dependencies) {
	user := api.PathPrefix("/user").Subrouter()
	user.Handle("/account", deps.AccountHandler).Methods(http.MethodPost)
	user.HandleFunc("/auth-data", deps.AuthDataHandler.Get).Methods(http.MethodGet)
	user.HandleFunc("/preferences", deps.PreferencesHandler.Get).Methods(http.MethodGet)
	user.HandleFunc("/preferences", deps.PreferencesHandler.Post).Methods(http.MethodPost)
	user.Handle("/subscription", deps.SubscriptionHandler).Methods(http.MethodGet)
	user.HandleFunc("/trial", deps.TrialHandler.Get).Methods(http.MethodGet)

	api.HandleFunc("/pricing", deps.PricingHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/navigation", deps.Guard.State).Methods(http.MethodGet)

	deps.Logger.Info("registered API routes", "prefix", "/api")
}

// registerAuthRoutes registers the identity provider callback and sign-out
func registerAuthRoutes(r *mux.Router, deps *Dependencies) {
	r.HandleFunc("/auth/callback", deps.IdentityHandler.Callback).Methods(http.MethodGet)
	r.HandleFunc("/auth/signout", deps.IdentityHandler.SignOut).Methods(http.MethodGet, http.MethodPost)
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(r *mux.Router, deps *Dependencies) {
	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	deps.Logger.Info("registered health check", "path", "/health")

	// Readiness check endpoint
	r.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	// Metrics endpoint (Prometheus)
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}

// registerPageRoutes puts every remaining path behind the route guard. Static
// assets bypass it.
func registerPageRoutes(r *mux.Router, deps *Dependencies) {
	pages := newPageHandler(deps.Config.Server.StaticDir)
	guarded := deps.Guard.Middleware(pages)

	r.PathPrefix("/").Methods(http.MethodGet, http.MethodHead).HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if isAsset(req.URL.Path) {
			pages.ServeHTTP(w, req)
			return
		}
		guarded.ServeHTTP(w, req)
	})
}

func isAsset(p string) bool {
	return path.Ext(p) != ""
}

// newPageHandler serves the built web app from dir, falling back to
// index.html for client-side routes. With no dir it answers with the page
// path so the guard can be exercised without a front end.
func newPageHandler(dir string) http.Handler {
	if dir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"page": r.URL.Path})
		})
	}

	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/") {
			if _, err := os.Stat(filepath.Join(name, "index.html")); err == nil {
				files.ServeHTTP(w, r)
				return
			}
		}
		http.ServeFile(w, r, index)
	})
}
