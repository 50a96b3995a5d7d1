package handler_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushroster/rushroster-cloud/internal/app"
	"github.com/rushroster/rushroster-cloud/internal/config"
	"github.com/rushroster/rushroster-cloud/internal/db/dbtest"
	"github.com/rushroster/rushroster-cloud/internal/routes"
	"github.com/rushroster/rushroster-cloud/internal/storage"
)

const testSecret = "handler-test-secret-handler-test-secret"

// jpegBytes starts with the JPEG magic number, which is all content
// sniffing looks at.
var jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x42}, 600)...)

type testServer struct {
	t       *testing.T
	app     *app.App
	handler http.Handler
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		AppName:           "RushRoster",
		AppEnv:            "development",
		DBDriver:          "sqlite",
		JWTSecret:         testSecret,
		JWTExpiry:         time.Hour,
		AllowRegistration: true,
		StorageProvider:   config.StorageLocal,
		StorageLocalPath:  t.TempDir(),
		PhotoUploadExpiry: time.Hour,
		PhotoMaxSize:      1 << 20,
		DedupTolerance:    5 * time.Second,
		IngestRateLimit:   1000,
		StatsInterval:     time.Hour,
	}
	for _, m := range mutate {
		m(cfg)
	}

	local, err := storage.NewLocalStorage(cfg.StorageLocalPath, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	a := app.NewWithDeps(cfg, dbtest.New(t), local)
	return &testServer{t: t, app: a, handler: routes.SetupRoutes(a)}
}

func (s *testServer) do(method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func apiKey(key string) http.Header {
	return http.Header{"X-Api-Key": {key}}
}

// login registers a user and returns a bearer token.
func (s *testServer) login(email string) string {
	s.t.Helper()
	password := "correct horse battery"

	rec := s.do(http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": password}, nil)
	expectStatus(s.t, rec, http.StatusCreated)

	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, nil)
	expectStatus(s.t, rec, http.StatusOK)
	return decode[struct {
		AccessToken string `json:"access_token"`
	}](s.t, rec).AccessToken
}

type registeredDevice struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	KeyID    string `json:"key_id"`
	APIKey   string `json:"api_key"`
}

func (s *testServer) registerDevice(token, externalID string) registeredDevice {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/devices/register", map[string]any{"device_id": externalID}, bearer(token))
	expectStatus(s.t, rec, http.StatusCreated)
	return decode[registeredDevice](s.t, rec)
}

type ingestResponse struct {
	Status            string `json:"status"`
	Processed         int    `json:"processed"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	CreatedEvents     []struct {
		EventID   string    `json:"event_id"`
		Timestamp time.Time `json:"timestamp"`
		Speed     float64   `json:"speed"`
		HasPhoto  bool      `json:"has_photo"`
	} `json:"created_events"`
}

func event(ts time.Time, speed float64) map[string]any {
	return map[string]any{
		"timestamp":   ts.Format(time.RFC3339Nano),
		"speed":       speed,
		"speed_limit": 25,
		"is_speeding": speed > 25,
		"has_photo":   false,
	}
}

func (s *testServer) ingest(key string, events ...map[string]any) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/ingest/v1/events", map[string]any{"events": events}, apiKey(key))
}

// pathOf strips scheme and host so an absolute URL can be replayed
// against the in-process handler.
func pathOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	return u.RequestURI()
}
