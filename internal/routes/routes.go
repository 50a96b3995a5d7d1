package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/app"
	"github.com/rushroster/rushroster-cloud/internal/handler"
	"github.com/rushroster/rushroster-cloud/internal/middleware"
	"github.com/rushroster/rushroster-cloud/internal/storage"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	auth := handler.NewAuthHandler(app.AuthService)
	devices := handler.NewDeviceHandler(app.DeviceService)
	ingest := handler.NewIngestHandler(app.IngestService, app.EventService)
	photos := handler.NewPhotoHandler(app.PhotoService)
	stats := handler.NewStatsHandler(app.StatsService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/stats", stats.Global)

	// Auth - credential endpoints (rate limited per IP)
	rateLimitAuth := middleware.RateLimitAuth()
	mux.Handle("POST /api/auth/register", rateLimitAuth(http.HandlerFunc(auth.Register)))
	mux.Handle("POST /api/auth/login", rateLimitAuth(http.HandlerFunc(auth.Login)))

	// ============================================================================
	// USER ROUTES (Authorization: Bearer)
	// ============================================================================

	requireUser := middleware.UserAuth(app.AuthService)
	userRoute := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireUser(h))
	}

	userRoute("GET /api/auth/me", auth.Me)
	mux.Handle("POST /api/auth/password", rateLimitAuth(requireUser(http.HandlerFunc(auth.ChangePassword))))
	userRoute("POST /api/auth/devices/register", devices.Register)
	userRoute("GET /api/auth/devices", devices.List)
	userRoute("GET /api/auth/devices/{id}", devices.Get)
	userRoute("DELETE /api/auth/devices/{id}", devices.Delete)
	userRoute("GET /api/auth/devices/{id}/keys", devices.Keys)
	userRoute("POST /api/auth/devices/{id}/keys", devices.IssueKey)
	userRoute("DELETE /api/auth/devices/{id}/keys/{keyID}", devices.RevokeKey)

	// ============================================================================
	// DEVICE ROUTES (X-API-Key)
	// ============================================================================

	requireDevice := middleware.DeviceAuth(app.DeviceAuthService)
	rateLimitDevice := middleware.RateLimitDevice(app.Cfg.IngestRateLimit)
	deviceRoute := func(pattern string, h http.HandlerFunc) {
		// DeviceAuth runs first so the limiter can key on the device.
		mux.Handle(pattern, middleware.Chain(h, requireDevice, rateLimitDevice))
	}

	deviceRoute("POST /api/ingest/v1/events", ingest.UploadEvents)
	deviceRoute("GET /api/ingest/v1/events", ingest.ListEvents)
	deviceRoute("POST /api/ingest/v1/events/{id}/photo/url", photos.RequestUploadURL)
	deviceRoute("POST /api/ingest/v1/events/{id}/photo/confirm", photos.ConfirmUpload)
	deviceRoute("POST /api/ingest/v1/heartbeat", ingest.Heartbeat)
	deviceRoute("GET /api/ingest/v1/device/info", ingest.DeviceInfo)
	deviceRoute("GET /api/ingest/v1/device/stats", ingest.DeviceStats)

	// ============================================================================
	// LOCAL STORAGE (only when photos live on disk)
	// ============================================================================

	if local, ok := app.Storage.(*storage.LocalStorage); ok {
		files := handler.NewStorageHandler(local, app.Cfg.PhotoMaxSize)
		mux.HandleFunc("PUT "+storage.UploadRoute+"{key...}", files.Upload)
		mux.HandleFunc("GET "+storage.FilesRoute+"{key...}", files.Serve)
		mux.HandleFunc("GET "+storage.DownloadRoute+"{key...}", files.Serve)
	}

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		apierr.NotFound(w, "Not found")
	})

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.Recover,
		middleware.SecurityHeaders,
		middleware.RequestLogging,
		middleware.Metrics,
	)

	return handler
}
