package model

import (
	"time"
)

// Device is a field unit reporting speed events. ID is the internal UUID;
// DeviceID is the operator-assigned external identifier.
type Device struct {
	ID             string     `db:"id" json:"id"`
	DeviceID       string     `db:"device_id" json:"device_id"`
	OwnerID        string     `db:"owner_id" json:"owner_id"`
	Latitude       *float64   `db:"latitude" json:"latitude"`
	Longitude      *float64   `db:"longitude" json:"longitude"`
	StreetName     *string    `db:"street_name" json:"street_name"`
	SpeedLimit     *float64   `db:"speed_limit" json:"speed_limit"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	ShareCommunity bool       `db:"share_community" json:"share_community"`
	RegisteredAt   time.Time  `db:"registered_at" json:"registered_at"`
	LastSync       *time.Time `db:"last_sync" json:"last_sync"`
}

// DeviceCredential is a stored API key. Only the SHA-256 hash of the raw
// key is persisted.
type DeviceCredential struct {
	ID        string     `db:"id" json:"id"`
	DeviceID  string     `db:"device_id" json:"device_id"`
	KeyHash   string     `db:"api_key_hash" json:"-"`
	Name      *string    `db:"name" json:"name"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	LastUsed  *time.Time `db:"last_used" json:"last_used"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at"`
}

// Usable reports whether the credential may authenticate at the given time.
func (c *DeviceCredential) Usable(now time.Time) bool {
	return c.IsActive && (c.ExpiresAt == nil || c.ExpiresAt.After(now))
}
