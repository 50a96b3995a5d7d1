package handler_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rushroster/rushroster-cloud/internal/config"
	"github.com/rushroster/rushroster-cloud/internal/metrics"
)

func TestIngest_DedupScenario(t *testing.T) {
	s := newTestServer(t)
	dev := s.registerDevice(s.login("owner@example.com"), "RR-001")

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	batch := []map[string]any{
		event(base, 30),
		event(base.Add(2*time.Second), 30),
		event(base.Add(10*time.Second), 30),
	}

	rec := s.ingest(dev.APIKey, batch...)
	expectStatus(t, rec, http.StatusOK)
	got := decode[ingestResponse](t, rec)
	if got.Status != "success" || got.Processed != 2 || got.DuplicatesSkipped != 1 {
		t.Fatalf("ingest = %+v, want success 2/1", got)
	}
	if len(got.CreatedEvents) != 2 || !got.CreatedEvents[1].Timestamp.Equal(base.Add(10*time.Second)) {
		t.Errorf("created events = %+v", got.CreatedEvents)
	}

	// Resubmitting the same batch is a no-op.
	rec = s.ingest(dev.APIKey, batch...)
	expectStatus(t, rec, http.StatusOK)
	again := decode[ingestResponse](t, rec)
	if again.Processed != 0 || again.DuplicatesSkipped != 3 || len(again.CreatedEvents) != 0 {
		t.Errorf("resubmit = %+v, want 0/3", again)
	}
	if !strings.Contains(rec.Body.String(), `"created_events":[]`) {
		t.Errorf("created_events should be an empty array: %s", rec.Body.String())
	}
}

func TestIngest_AcceptsTimestampsWithoutZone(t *testing.T) {
	s := newTestServer(t)
	dev := s.registerDevice(s.login("owner@example.com"), "RR-001")

	body := `{"events":[{"timestamp":"2025-03-14T11:00:00.250000","speed":31.5,"speed_limit":25,"is_speeding":true}]}`
	rec := s.do(http.MethodPost, "/api/ingest/v1/events", body, apiKey(dev.APIKey))
	expectStatus(t, rec, http.StatusOK)

	got := decode[ingestResponse](t, rec)
	want := time.Date(2025, 3, 14, 11, 0, 0, 250_000_000, time.UTC)
	if len(got.CreatedEvents) != 1 || !got.CreatedEvents[0].Timestamp.Equal(want) {
		t.Errorf("created = %+v, want timestamp %v", got.CreatedEvents, want)
	}
}

func TestIngest_Rejections(t *testing.T) {
	s := newTestServer(t)
	dev := s.registerDevice(s.login("owner@example.com"), "RR-001")
	now := time.Now().UTC().Add(-time.Hour)

	tooMany := make([]map[string]any, 1001)
	for i := range tooMany {
		tooMany[i] = event(now.Add(time.Duration(i)*time.Minute), 30)
	}

	tests := []struct {
		name   string
		header http.Header
		body   any
		status int
		code   string
	}{
		{"missing key", nil, map[string]any{"events": []any{event(now, 30)}}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown key", apiKey("rushroster_" + strings.Repeat("0", 64)), map[string]any{"events": []any{event(now, 30)}}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed key", apiKey("not-a-key"), map[string]any{"events": []any{event(now, 30)}}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed json", apiKey(dev.APIKey), `{"events": [`, http.StatusBadRequest, "BAD_REQUEST"},
		{"empty batch", apiKey(dev.APIKey), map[string]any{"events": []any{}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"too many events", apiKey(dev.APIKey), map[string]any{"events": tooMany}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"zero speed", apiKey(dev.APIKey), map[string]any{"events": []any{event(now, 30), event(now.Add(time.Minute), 0)}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"bad timestamp", apiKey(dev.APIKey), `{"events":[{"timestamp":"yesterday","speed":30,"speed_limit":25}]}`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/ingest/v1/events", tt.body, tt.header)
			expectStatus(t, rec, tt.status)
			if got := decode[errorResponse](t, rec); got.Error.Code != tt.code {
				t.Errorf("error code = %q, want %q", got.Error.Code, tt.code)
			}
		})
	}

	// Nothing from the rejected batches was stored.
	rec := s.do(http.MethodGet, "/api/ingest/v1/events", nil, apiKey(dev.APIKey))
	expectStatus(t, rec, http.StatusOK)
	listed := decode[struct {
		Events []map[string]any `json:"events"`
	}](t, rec)
	if len(listed.Events) != 0 {
		t.Errorf("rejected batches stored %d events", len(listed.Events))
	}
}

func TestDeviceAuthFailuresCountedOnce(t *testing.T) {
	s := newTestServer(t)
	failures := metrics.AuthFailuresTotal.WithLabelValues("device")

	for _, header := range []http.Header{
		nil,
		apiKey("not-a-key"),
		apiKey("rushroster_" + strings.Repeat("a", 64)),
	} {
		before := testutil.ToFloat64(failures)
		rec := s.do(http.MethodPost, "/api/ingest/v1/heartbeat", nil, header)
		expectStatus(t, rec, http.StatusUnauthorized)
		if delta := testutil.ToFloat64(failures) - before; delta != 1 {
			t.Errorf("auth failures added for key %q = %v, want 1", header.Get("X-Api-Key"), delta)
		}
	}
}

func TestIngest_DeviceIsolation(t *testing.T) {
	s := newTestServer(t)
	token := s.login("owner@example.com")
	a := s.registerDevice(token, "RR-A")
	b := s.registerDevice(token, "RR-B")

	ts := time.Now().UTC().Add(-time.Hour)
	expectStatus(t, s.ingest(a.APIKey, event(ts, 30)), http.StatusOK)

	rec := s.ingest(b.APIKey, event(ts, 30))
	expectStatus(t, rec, http.StatusOK)
	if got := decode[ingestResponse](t, rec); got.Processed != 1 {
		t.Errorf("same event from another device processed = %d, want 1", got.Processed)
	}
}

func TestHeartbeatAndDeviceReads(t *testing.T) {
	s := newTestServer(t)
	dev := s.registerDevice(s.login("owner@example.com"), "RR-042")
	key := apiKey(dev.APIKey)

	rec := s.do(http.MethodPost, "/api/ingest/v1/heartbeat", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    map[string]any{"uptime": 3600, "camera": "ok"},
	}, key)
	expectStatus(t, rec, http.StatusOK)
	hb := decode[map[string]string](t, rec)
	if hb["status"] != "success" || hb["message"] != "Heartbeat received from device RR-042" {
		t.Errorf("heartbeat = %v", hb)
	}

	// An empty heartbeat body is fine too.
	expectStatus(t, s.do(http.MethodPost, "/api/ingest/v1/heartbeat", nil, key), http.StatusOK)

	rec = s.do(http.MethodGet, "/api/ingest/v1/device/info", nil, key)
	expectStatus(t, rec, http.StatusOK)
	info := decode[struct {
		ID       string     `json:"id"`
		DeviceID string     `json:"device_id"`
		LastSync *time.Time `json:"last_sync"`
	}](t, rec)
	if info.ID != dev.ID || info.DeviceID != "RR-042" || info.LastSync == nil {
		t.Errorf("device info = %+v", info)
	}

	base := time.Now().UTC().Add(-2 * time.Hour)
	expectStatus(t, s.ingest(dev.APIKey, event(base, 20), event(base.Add(time.Minute), 40)), http.StatusOK)

	rec = s.do(http.MethodGet, "/api/ingest/v1/device/stats?hours=24", nil, key)
	expectStatus(t, rec, http.StatusOK)
	stats := decode[struct {
		PeriodHours    int      `json:"period_hours"`
		TotalEvents    int      `json:"total_events"`
		SpeedingEvents int      `json:"speeding_events"`
		AvgSpeed       *float64 `json:"avg_speed"`
	}](t, rec)
	if stats.PeriodHours != 24 || stats.TotalEvents != 2 || stats.SpeedingEvents != 1 || stats.AvgSpeed == nil || *stats.AvgSpeed != 30 {
		t.Errorf("device stats = %+v", stats)
	}

	expectStatus(t, s.do(http.MethodGet, "/api/ingest/v1/device/stats?hours=0", nil, key), http.StatusUnprocessableEntity)
	expectStatus(t, s.do(http.MethodGet, "/api/ingest/v1/device/stats?hours=abc", nil, key), http.StatusUnprocessableEntity)

	rec = s.do(http.MethodGet, "/api/ingest/v1/events?speeding_only=true&limit=5", nil, key)
	expectStatus(t, rec, http.StatusOK)
	listed := decode[struct {
		Events []struct {
			Speed float64 `json:"speed"`
		} `json:"events"`
		Limit int `json:"limit"`
	}](t, rec)
	if len(listed.Events) != 1 || listed.Events[0].Speed != 40 || listed.Limit != 5 {
		t.Errorf("events = %+v", listed)
	}
}

func TestDeviceRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.IngestRateLimit = 2 })
	dev := s.registerDevice(s.login("owner@example.com"), "RR-001")
	key := apiKey(dev.APIKey)

	expectStatus(t, s.do(http.MethodPost, "/api/ingest/v1/heartbeat", nil, key), http.StatusOK)
	expectStatus(t, s.do(http.MethodPost, "/api/ingest/v1/heartbeat", nil, key), http.StatusOK)
	rec := s.do(http.MethodPost, "/api/ingest/v1/heartbeat", nil, key)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if got := decode[errorResponse](t, rec); got.Error.Code != "RATE_LIMITED" {
		t.Errorf("error code = %q", got.Error.Code)
	}
}
