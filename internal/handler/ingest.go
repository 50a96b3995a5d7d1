package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/ctxkeys"
	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/service"
)

// IngestHandler serves the device-facing ingestion API. Every route sits
// behind middleware.DeviceAuth, so the device is always in the context.
type IngestHandler struct {
	ingestService *service.IngestService
	eventService  *service.EventService
}

func NewIngestHandler(ingestService *service.IngestService, eventService *service.EventService) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		eventService:  eventService,
	}
}

type eventPayload struct {
	Timestamp  wireTime `json:"timestamp"`
	Speed      float64  `json:"speed"`
	SpeedLimit float64  `json:"speed_limit"`
	IsSpeeding bool     `json:"is_speeding"`
	HasPhoto   bool     `json:"has_photo"`
}

type ingestRequest struct {
	Events []eventPayload `json:"events"`
}

type ingestResponse struct {
	Status            string                 `json:"status"`
	Processed         int                    `json:"processed"`
	DuplicatesSkipped int                    `json:"duplicates_skipped"`
	CreatedEvents     []service.EventSummary `json:"created_events"`
}

// UploadEvents ingests a batch of speed events.
func (h *IngestHandler) UploadEvents(w http.ResponseWriter, r *http.Request) {
	device := ctxkeys.Device(r.Context())

	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	events := make([]service.EventInput, len(req.Events))
	for i, e := range req.Events {
		events[i] = service.EventInput{
			Timestamp:  time.Time(e.Timestamp),
			Speed:      e.Speed,
			SpeedLimit: e.SpeedLimit,
			IsSpeeding: e.IsSpeeding,
			HasPhoto:   e.HasPhoto,
		}
	}

	result, err := h.ingestService.Ingest(r.Context(), device, events)
	if err != nil {
		writeError(w, r, err, "ingest events")
		return
	}

	created := result.Created
	if created == nil {
		created = []service.EventSummary{}
	}
	apierr.WriteJSON(w, http.StatusOK, ingestResponse{
		Status:            "success",
		Processed:         result.Processed,
		DuplicatesSkipped: result.DuplicatesSkipped,
		CreatedEvents:     created,
	})
}

type heartbeatRequest struct {
	Timestamp *wireTime      `json:"timestamp"`
	Status    map[string]any `json:"status"`
}

// Heartbeat records that the device is alive. The body is optional.
func (h *IngestHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	device := ctxkeys.Device(r.Context())

	var req heartbeatRequest
	if err := decodeJSON(w, r, &req); err != nil && err != errEmptyBody {
		writeDecodeError(w, err)
		return
	}

	if err := h.ingestService.Heartbeat(r.Context(), device); err != nil {
		writeError(w, r, err, "heartbeat")
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Heartbeat received from device " + device.DeviceID,
	})
}

// DeviceInfo returns the authenticated device's record.
func (h *IngestHandler) DeviceInfo(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusOK, ctxkeys.Device(r.Context()))
}

type deviceStatsResponse struct {
	DeviceID    string `json:"device_id"`
	PeriodHours int    `json:"period_hours"`
	*model.EventStats
}

// DeviceStats aggregates the device's recent events (?hours=24).
func (h *IngestHandler) DeviceStats(w http.ResponseWriter, r *http.Request) {
	device := ctxkeys.Device(r.Context())

	hours := service.DefaultStatsHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierr.ValidationError(w, "hours must be an integer")
			return
		}
		hours = n
	}

	stats, err := h.eventService.Stats(r.Context(), device, hours)
	if err != nil {
		writeError(w, r, err, "device stats")
		return
	}

	apierr.WriteJSON(w, http.StatusOK, deviceStatsResponse{
		DeviceID:    device.DeviceID,
		PeriodHours: hours,
		EventStats:  stats,
	})
}

type listEventsResponse struct {
	Events []*model.SpeedEvent `json:"events"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ListEvents pages through the device's events, newest first.
func (h *IngestHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	device := ctxkeys.Device(r.Context())
	q := r.URL.Query()

	var in service.ListEventsInput
	var err error
	if v := q.Get("limit"); v != "" {
		if in.Limit, err = strconv.Atoi(v); err != nil {
			apierr.ValidationError(w, "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if in.Offset, err = strconv.Atoi(v); err != nil {
			apierr.ValidationError(w, "offset must be an integer")
			return
		}
	}
	if v := q.Get("speeding_only"); v != "" {
		if in.SpeedingOnly, err = strconv.ParseBool(v); err != nil {
			apierr.ValidationError(w, "speeding_only must be a boolean")
			return
		}
	}

	events, err := h.eventService.List(r.Context(), device, in)
	if err != nil {
		writeError(w, r, err, "list events")
		return
	}
	if events == nil {
		events = []*model.SpeedEvent{}
	}
	for _, e := range events {
		if e.PhotoURL != nil {
			u := absoluteURL(r, *e.PhotoURL)
			e.PhotoURL = &u
		}
	}

	limit := in.Limit
	if limit <= 0 {
		limit = service.DefaultEventLimit
	}
	apierr.WriteJSON(w, http.StatusOK, listEventsResponse{
		Events: events,
		Limit:  min(limit, service.MaxEventLimit),
		Offset: in.Offset,
	})
}
