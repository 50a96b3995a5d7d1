package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/ctxkeys"
)

// RateLimitAuth limits credential endpoints per client IP.
// Limits: 10 requests per 15 minutes per IP
func RateLimitAuth() func(http.Handler) http.Handler {
	return httprate.Limit(
		10,
		15*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return getClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			apierr.RateLimited(w, "Too many requests. Please try again later.")
		}),
	)
}

// RateLimitDevice limits requests per authenticated device. It must run
// after DeviceAuth; requests without a device fall back to the client IP.
func RateLimitDevice(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if device := ctxkeys.Device(r.Context()); device != nil {
				return "device:" + device.ID, nil
			}
			return "ip:" + getClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			apierr.RateLimited(w, "Device rate limit exceeded")
		}),
	)
}

// getClientIP extracts real client IP from request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (proxy/load balancer)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// Take first IP in list
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr
	ip := r.RemoteAddr
	// Remove port if present
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	return ip
}
