package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/metrics"
	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/repository"
)

// StatsService maintains the fleet-wide statistics snapshot.
type StatsService struct {
	stats repository.StatsRepository
	now   func() time.Time
}

func NewStatsService(stats repository.StatsRepository) *StatsService {
	return &StatsService{stats: stats, now: time.Now}
}

// Refresh recomputes and persists the snapshot.
func (s *StatsService) Refresh(ctx context.Context) (*model.GlobalStatistics, error) {
	stats, err := s.stats.Compute(ctx, s.now().UTC())
	if err == nil {
		err = s.stats.Save(ctx, stats)
	}
	metrics.StatsRefreshTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh statistics: %w", err)
	}

	slog.Info("global statistics refreshed",
		"devices", stats.TotalDevices,
		"events", stats.TotalEvents,
		"events_24h", stats.RecentEvents24h,
	)
	return stats, nil
}

func (s *StatsService) Latest(ctx context.Context) (*model.GlobalStatistics, error) {
	stats, err := s.stats.Latest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrStatsNotFound) {
			return nil, ErrStatsUnavailable
		}
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return stats, nil
}
