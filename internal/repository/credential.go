package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rushroster/rushroster-cloud/internal/model"
)

var ErrCredentialNotFound = errors.New("credential not found")

const credentialColumns = `id, device_id, api_key_hash, name, is_active, created_at, last_used, expires_at`

type CredentialRepository interface {
	Create(ctx context.Context, cred *model.DeviceCredential) error
	// DeviceByHash resolves an API key hash to its device. Only active,
	// unexpired credentials of active devices match.
	DeviceByHash(ctx context.Context, hash string, now time.Time) (*model.Device, error)
	TouchLastUsed(ctx context.Context, hash string, at time.Time) error
	ByDevice(ctx context.Context, deviceID string) ([]*model.DeviceCredential, error)
	Deactivate(ctx context.Context, deviceID, id string) error
}

type credentialRepository struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, c *model.DeviceCredential) error {
	query := `INSERT INTO device_api_keys (` + credentialColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query, c.ID, c.DeviceID, c.KeyHash, c.Name, c.IsActive,
		c.CreatedAt, c.LastUsed, c.ExpiresAt)
	return err
}

func (r *credentialRepository) DeviceByHash(ctx context.Context, hash string, now time.Time) (*model.Device, error) {
	device := &model.Device{}
	query := `SELECT d.id, d.device_id, d.owner_id, d.latitude, d.longitude, d.street_name, d.speed_limit,
			d.is_active, d.share_community, d.registered_at, d.last_sync
		FROM device_api_keys k
		JOIN devices d ON d.id = k.device_id
		WHERE k.api_key_hash = $1
			AND k.is_active = $2
			AND d.is_active = $2
			AND (k.expires_at IS NULL OR k.expires_at > $3)`

	err := r.db.GetContext(ctx, device, query, hash, true, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}

	return device, nil
}

func (r *credentialRepository) TouchLastUsed(ctx context.Context, hash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE device_api_keys SET last_used = $1 WHERE api_key_hash = $2`, at, hash)
	return err
}

func (r *credentialRepository) ByDevice(ctx context.Context, deviceID string) ([]*model.DeviceCredential, error) {
	var creds []*model.DeviceCredential
	query := `SELECT ` + credentialColumns + ` FROM device_api_keys WHERE device_id = $1 ORDER BY created_at`

	err := r.db.SelectContext(ctx, &creds, query, deviceID)
	return creds, err
}

func (r *credentialRepository) Deactivate(ctx context.Context, deviceID, id string) error {
	query := `UPDATE device_api_keys SET is_active = $1 WHERE id = $2 AND device_id = $3`

	result, err := r.db.ExecContext(ctx, query, false, id, deviceID)
	if err != nil {
		return err
	}
	return requireRow(result, ErrCredentialNotFound)
}
