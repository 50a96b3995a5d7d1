package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/ctxkeys"
	"github.com/rushroster/rushroster-cloud/internal/metrics"
	"github.com/rushroster/rushroster-cloud/internal/service"
)

// APIKeyHeader carries the device API key on every device request.
const APIKeyHeader = "X-API-Key"

// DeviceAuth resolves the X-API-Key header to a device and stores it in the
// request context. Requests without a usable key get 401 and never reach
// the handler.
func DeviceAuth(deviceAuth *service.DeviceAuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if key == "" {
				metrics.AuthFailuresTotal.WithLabelValues("device").Inc()
				apierr.Unauthorized(w, "Missing API key")
				return
			}

			// Authenticate counts its own rejections.
			device, err := deviceAuth.Authenticate(r.Context(), key)
			if err != nil {
				if !errors.Is(err, service.ErrInvalidAPIKey) {
					slog.Error("device authentication failed", "error", err)
				}
				apierr.Unauthorized(w, "Invalid API key")
				return
			}

			ctx := ctxkeys.WithDevice(r.Context(), device)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserAuth resolves an "Authorization: Bearer" access token to a user.
func UserAuth(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				metrics.AuthFailuresTotal.WithLabelValues("user").Inc()
				apierr.Unauthorized(w, "Missing bearer token")
				return
			}

			user, err := authService.UserFromToken(r.Context(), token)
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("user").Inc()
				if !errors.Is(err, service.ErrInvalidToken) {
					slog.Error("user authentication failed", "error", err)
				}
				apierr.Unauthorized(w, "Invalid or expired token")
				return
			}

			// Security: Remove password hash from context
			user.PasswordHash = ""

			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
