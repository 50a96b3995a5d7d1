package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/model"
)

// StatsRefresher is the part of service.StatsService the job needs.
type StatsRefresher interface {
	Refresh(ctx context.Context) (*model.GlobalStatistics, error)
}

// StatsJob recomputes global statistics at startup and then on every
// interval. A failed run is logged and retried on the next tick.
type StatsJob struct {
	stats    StatsRefresher
	interval time.Duration
}

func NewStatsJob(stats StatsRefresher, interval time.Duration) *StatsJob {
	return &StatsJob{stats: stats, interval: interval}
}

// Serve implements suture.Service.
func (j *StatsJob) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *StatsJob) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := j.stats.Refresh(runCtx); err != nil && ctx.Err() == nil {
		slog.Error("stats refresh failed", "error", err)
	}
}

func (j *StatsJob) String() string {
	return "stats-refresher"
}
