package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/metrics"
)

// unmatchedRoute labels requests no registered route claimed.
const unmatchedRoute = "unmatched"

// Metrics records request counts and durations per matched route. It must
// wrap the ServeMux directly so the mux's pattern is visible on r.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		route := routeLabel(r.Pattern)
		method := methodLabel(r.Method)
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(rw.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel turns a mux pattern such as "GET /api/auth/devices/{id}" into
// its path part. The catch-all "/" counts as unmatched.
func routeLabel(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = path
	}
	if pattern == "" || pattern == "/" {
		return unmatchedRoute
	}
	return pattern
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions:
		return method
	}
	return "OTHER"
}
