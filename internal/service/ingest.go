package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rushroster/rushroster-cloud/internal/metrics"
	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/repository"
	"github.com/rushroster/rushroster-cloud/internal/validation"
)

const (
	MaxBatchSize = 1000

	// DefaultDedupTolerance is the window on either side of an event's
	// timestamp in which an equal-speed event counts as a duplicate.
	DefaultDedupTolerance = 5 * time.Second
)

// EventInput is one device-reported event as submitted.
type EventInput struct {
	Timestamp  time.Time `json:"timestamp"`
	Speed      float64   `json:"speed" validate:"gt=0"`
	SpeedLimit float64   `json:"speed_limit" validate:"gt=0"`
	IsSpeeding bool      `json:"is_speeding"`
	HasPhoto   bool      `json:"has_photo"`
}

type eventBatch struct {
	Events []EventInput `json:"events" validate:"min=1,max=1000,dive"`
}

// EventSummary describes an event created by an ingest call.
type EventSummary struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
	HasPhoto  bool      `json:"has_photo"`
}

// errNoNewEvents rolls back a transaction that inserted nothing.
var errNoNewEvents = errors.New("no new events")

type IngestResult struct {
	Processed         int
	DuplicatesSkipped int
	Created           []EventSummary
}

// IngestService accepts event batches from authenticated devices.
type IngestService struct {
	events    repository.EventRepository
	devices   repository.DeviceRepository
	tolerance time.Duration
	now       func() time.Time
}

func NewIngestService(events repository.EventRepository, devices repository.DeviceRepository, tolerance time.Duration) *IngestService {
	return &IngestService{
		events:    events,
		devices:   devices,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Ingest stores the non-duplicate events of a batch in one transaction.
// Events are checked in input order against stored events and against the
// ones inserted earlier in the same batch. The device's last_sync is
// updated once per call, also when every event was a duplicate.
func (s *IngestService) Ingest(ctx context.Context, device *model.Device, events []EventInput) (*IngestResult, error) {
	if err := validateBatch(events); err != nil {
		metrics.IngestRejectedTotal.Inc()
		return nil, err
	}

	now := s.now().UTC()
	result := &IngestResult{Created: []EventSummary{}}

	err := s.events.InTx(ctx, func(store repository.EventStore) error {
		for _, in := range events {
			ts := in.Timestamp.UTC()

			dup, err := store.IsDuplicate(ctx, device.ID, ts, in.Speed, s.tolerance)
			if err != nil {
				return err
			}
			if dup {
				result.DuplicatesSkipped++
				continue
			}

			event := &model.SpeedEvent{
				ID:         uuid.New().String(),
				DeviceID:   device.ID,
				Timestamp:  ts,
				Speed:      in.Speed,
				SpeedLimit: in.SpeedLimit,
				IsSpeeding: in.IsSpeeding,
				HasPhoto:   in.HasPhoto,
				CreatedAt:  now,
			}
			if err := store.Create(ctx, event); err != nil {
				return fmt.Errorf("insert event: %w", err)
			}

			result.Created = append(result.Created, EventSummary{
				EventID:   event.ID,
				Timestamp: event.Timestamp,
				Speed:     event.Speed,
				HasPhoto:  event.HasPhoto,
			})
		}
		if len(result.Created) == 0 {
			return errNoNewEvents
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoNewEvents) {
		return nil, fmt.Errorf("failed to ingest events: %w", err)
	}
	result.Processed = len(result.Created)

	if err := s.devices.TouchLastSync(ctx, device.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last sync: %w", err)
	}

	metrics.IngestBatchSize.Observe(float64(len(events)))
	metrics.IngestEventsTotal.WithLabelValues("created").Add(float64(result.Processed))
	metrics.IngestEventsTotal.WithLabelValues("duplicate").Add(float64(result.DuplicatesSkipped))

	slog.Info("events ingested",
		"device_id", device.ID,
		"received", len(events),
		"processed", result.Processed,
		"duplicates", result.DuplicatesSkipped,
	)
	return result, nil
}

// Heartbeat records that the device is alive.
func (s *IngestService) Heartbeat(ctx context.Context, device *model.Device) error {
	if err := s.devices.TouchLastSync(ctx, device.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}
	return nil
}

func validateBatch(events []EventInput) error {
	if err := validation.Struct(&eventBatch{Events: events}); err != nil {
		return validationError("%s", err)
	}
	for i, e := range events {
		if e.Timestamp.IsZero() {
			return validationError("events[%d].timestamp is required", i)
		}
	}
	return nil
}
