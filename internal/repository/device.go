package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rushroster/rushroster-cloud/internal/model"
)

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDuplicateDevice = errors.New("device id already registered")
)

const deviceColumns = `id, device_id, owner_id, latitude, longitude, street_name, speed_limit,
	is_active, share_community, registered_at, last_sync`

type DeviceRepository interface {
	Create(ctx context.Context, device *model.Device) error
	ByID(ctx context.Context, id string) (*model.Device, error)
	ByExternalID(ctx context.Context, deviceID string) (*model.Device, error)
	ByOwner(ctx context.Context, ownerID string) ([]*model.Device, error)
	TouchLastSync(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type deviceRepository struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Create(ctx context.Context, d *model.Device) error {
	query := `INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query, d.ID, d.DeviceID, d.OwnerID, d.Latitude, d.Longitude,
		d.StreetName, d.SpeedLimit, d.IsActive, d.ShareCommunity, d.RegisteredAt, d.LastSync)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateDevice
		}
		return err
	}

	return nil
}

func (r *deviceRepository) ByID(ctx context.Context, id string) (*model.Device, error) {
	return r.get(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
}

func (r *deviceRepository) ByExternalID(ctx context.Context, deviceID string) (*model.Device, error) {
	return r.get(ctx, `SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`, deviceID)
}

func (r *deviceRepository) get(ctx context.Context, query string, arg any) (*model.Device, error) {
	device := &model.Device{}
	err := r.db.GetContext(ctx, device, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (r *deviceRepository) ByOwner(ctx context.Context, ownerID string) ([]*model.Device, error) {
	var devices []*model.Device
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE owner_id = $1 ORDER BY registered_at`

	err := r.db.SelectContext(ctx, &devices, query, ownerID)
	return devices, err
}

func (r *deviceRepository) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE devices SET last_sync = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrDeviceNotFound)
}

// Delete removes the device; events and credentials go with it via
// ON DELETE CASCADE.
func (r *deviceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrDeviceNotFound)
}

func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
