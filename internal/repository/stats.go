package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rushroster/rushroster-cloud/internal/model"
)

var ErrStatsNotFound = errors.New("statistics not computed yet")

// globalStatsRow is the fixed primary key of the single statistics row.
const globalStatsRow = 1

type StatsRepository interface {
	// Compute aggregates fleet totals as of now without persisting them.
	Compute(ctx context.Context, now time.Time) (*model.GlobalStatistics, error)
	Save(ctx context.Context, stats *model.GlobalStatistics) error
	Latest(ctx context.Context) (*model.GlobalStatistics, error)
}

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Compute(ctx context.Context, now time.Time) (*model.GlobalStatistics, error) {
	stats := &model.GlobalStatistics{UpdatedAt: now.UTC()}

	deviceQuery := `SELECT
			COUNT(*) AS total_devices,
			COUNT(CASE WHEN share_community = $2 THEN 1 END) AS community_devices
		FROM devices WHERE is_active = $1`
	err := r.db.QueryRowxContext(ctx, deviceQuery, true, true).Scan(&stats.TotalDevices, &stats.CommunityDevices)
	if err != nil {
		return nil, err
	}

	eventQuery := `SELECT
			COUNT(*),
			COUNT(CASE WHEN is_speeding = $1 THEN 1 END),
			COUNT(CASE WHEN timestamp >= $2 THEN 1 END),
			COUNT(CASE WHEN timestamp >= $2 AND is_speeding = $1 THEN 1 END)
		FROM speed_events`
	err = r.db.QueryRowxContext(ctx, eventQuery, true, now.Add(-24*time.Hour).UTC()).Scan(
		&stats.TotalEvents, &stats.SpeedingEvents, &stats.RecentEvents24h, &stats.RecentSpeeding24h)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *statsRepository) Save(ctx context.Context, s *model.GlobalStatistics) error {
	query := `INSERT INTO global_statistics (id, total_devices, community_devices, total_events,
			speeding_events, recent_events_24h, recent_speeding_24h, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			total_devices = excluded.total_devices,
			community_devices = excluded.community_devices,
			total_events = excluded.total_events,
			speeding_events = excluded.speeding_events,
			recent_events_24h = excluded.recent_events_24h,
			recent_speeding_24h = excluded.recent_speeding_24h,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, globalStatsRow, s.TotalDevices, s.CommunityDevices, s.TotalEvents,
		s.SpeedingEvents, s.RecentEvents24h, s.RecentSpeeding24h, s.UpdatedAt.UTC())
	return err
}

func (r *statsRepository) Latest(ctx context.Context) (*model.GlobalStatistics, error) {
	stats := &model.GlobalStatistics{}
	query := `SELECT total_devices, community_devices, total_events, speeding_events,
			recent_events_24h, recent_speeding_24h, updated_at
		FROM global_statistics WHERE id = $1`

	err := r.db.GetContext(ctx, stats, query, globalStatsRow)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatsNotFound
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}
