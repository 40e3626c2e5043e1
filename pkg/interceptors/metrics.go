package interceptors

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/FACorreiaa/rocketstart-api/pkg/observability"
)

// NewMetricsMiddleware records request counts and latency keyed by the route
// template, so path parameters do not explode label cardinality.
func NewMetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			observability.ObserveHTTP(route, r.Method, strconv.Itoa(rec.code()), time.Since(start).Seconds())
		})
	}
}
