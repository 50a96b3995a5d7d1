package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/repository"
)

const (
	DefaultEventLimit = 100
	MaxEventLimit     = 1000
	DefaultStatsHours = 24
	MaxStatsHours     = 24 * 365
)

// EventService serves a device's read-only views of its own data.
type EventService struct {
	events repository.EventRepository
	now    func() time.Time
}

func NewEventService(events repository.EventRepository) *EventService {
	return &EventService{events: events, now: time.Now}
}

type ListEventsInput struct {
	Limit        int
	Offset       int
	SpeedingOnly bool
}

// List returns the device's events newest first. The limit is clamped to
// 1..MaxEventLimit.
func (s *EventService) List(ctx context.Context, device *model.Device, in ListEventsInput) ([]*model.SpeedEvent, error) {
	if in.Offset < 0 {
		return nil, validationError("offset must not be negative")
	}
	limit := in.Limit
	switch {
	case limit <= 0:
		limit = DefaultEventLimit
	case limit > MaxEventLimit:
		limit = MaxEventLimit
	}

	events, err := s.events.ByDevice(ctx, device.ID, repository.EventFilter{
		Limit:        limit,
		Offset:       in.Offset,
		SpeedingOnly: in.SpeedingOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Stats aggregates the device's events of the last hours.
func (s *EventService) Stats(ctx context.Context, device *model.Device, hours int) (*model.EventStats, error) {
	if hours < 1 || hours > MaxStatsHours {
		return nil, validationError("hours must be between 1 and %d", MaxStatsHours)
	}

	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	stats, err := s.events.StatsByDevice(ctx, device.ID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}
