package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rushroster/rushroster-cloud/internal/model"
)

var ErrEventNotFound = errors.New("event not found")

const eventColumns = `id, device_id, timestamp, speed, speed_limit, is_speeding, has_photo,
	photo_url, photo_key, created_at`

// EventStore is the part of the event repository that can run either on
// the database or inside an ingest transaction.
type EventStore interface {
	// IsDuplicate reports whether the device already has an event with
	// exactly this speed within tolerance of ts (inclusive both sides).
	IsDuplicate(ctx context.Context, deviceID string, ts time.Time, speed float64, tolerance time.Duration) (bool, error)
	Create(ctx context.Context, event *model.SpeedEvent) error
}

type EventFilter struct {
	Limit        int
	Offset       int
	SpeedingOnly bool
}

type EventRepository interface {
	EventStore
	// InTx runs fn against a transaction-scoped store. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(EventStore) error) error
	ByID(ctx context.Context, id string) (*model.SpeedEvent, error)
	ByDevice(ctx context.Context, deviceID string, f EventFilter) ([]*model.SpeedEvent, error)
	SetPhoto(ctx context.Context, id, url, key string) error
	PhotoKeysByDevice(ctx context.Context, deviceID string) ([]string, error)
	StatsByDevice(ctx context.Context, deviceID string, since time.Time) (*model.EventStats, error)
}

type eventStore struct {
	ext sqlx.ExtContext
}

func (s *eventStore) IsDuplicate(ctx context.Context, deviceID string, ts time.Time, speed float64, tolerance time.Duration) (bool, error) {
	query := `SELECT COUNT(*) FROM speed_events
		WHERE device_id = $1 AND timestamp >= $2 AND timestamp <= $3 AND speed = $4`

	var n int
	err := sqlx.GetContext(ctx, s.ext, &n, query, deviceID, ts.Add(-tolerance).UTC(), ts.Add(tolerance).UTC(), speed)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return n > 0, nil
}

func (s *eventStore) Create(ctx context.Context, e *model.SpeedEvent) error {
	query := `INSERT INTO speed_events (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.ext.ExecContext(ctx, query, e.ID, e.DeviceID, e.Timestamp.UTC(), e.Speed, e.SpeedLimit,
		e.IsSpeeding, e.HasPhoto, e.PhotoURL, e.PhotoKey, e.CreatedAt.UTC())
	return err
}

type eventRepository struct {
	*eventStore
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) EventRepository {
	return &eventRepository{eventStore: &eventStore{ext: db}, db: db}
}

func (r *eventRepository) InTx(ctx context.Context, fn func(EventStore) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&eventStore{ext: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *eventRepository) ByID(ctx context.Context, id string) (*model.SpeedEvent, error) {
	event := &model.SpeedEvent{}
	query := `SELECT ` + eventColumns + ` FROM speed_events WHERE id = $1`

	err := r.db.GetContext(ctx, event, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	return event, nil
}

// ByDevice lists a device's events newest first.
func (r *eventRepository) ByDevice(ctx context.Context, deviceID string, f EventFilter) ([]*model.SpeedEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM speed_events WHERE device_id = $1`
	args := []any{deviceID}

	if f.SpeedingOnly {
		query += ` AND is_speeding = $2`
		args = append(args, true)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	events := []*model.SpeedEvent{}
	err := r.db.SelectContext(ctx, &events, query, args...)
	return events, err
}

// SetPhoto records the photo reference. An existing reference is
// overwritten, never cleared.
func (r *eventRepository) SetPhoto(ctx context.Context, id, url, key string) error {
	if url == "" {
		return errors.New("photo url must not be empty")
	}
	query := `UPDATE speed_events SET photo_url = $1, photo_key = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, url, key, id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrEventNotFound)
}

func (r *eventRepository) PhotoKeysByDevice(ctx context.Context, deviceID string) ([]string, error) {
	var keys []string
	query := `SELECT photo_key FROM speed_events WHERE device_id = $1 AND photo_key IS NOT NULL`

	err := r.db.SelectContext(ctx, &keys, query, deviceID)
	return keys, err
}

func (r *eventRepository) StatsByDevice(ctx context.Context, deviceID string, since time.Time) (*model.EventStats, error) {
	stats := &model.EventStats{}
	query := `SELECT
			COUNT(*) AS total_events,
			COUNT(CASE WHEN is_speeding = $3 THEN 1 END) AS speeding_events,
			AVG(speed) AS avg_speed,
			MAX(speed) AS max_speed,
			MIN(speed) AS min_speed
		FROM speed_events
		WHERE device_id = $1 AND timestamp >= $2`

	err := r.db.GetContext(ctx, stats, query, deviceID, since.UTC(), true)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
