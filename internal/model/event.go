package model

import (
	"time"
)

type SpeedEvent struct {
	ID         string    `db:"id" json:"id"`
	DeviceID   string    `db:"device_id" json:"device_id"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	Speed      float64   `db:"speed" json:"speed"`
	SpeedLimit float64   `db:"speed_limit" json:"speed_limit"`
	IsSpeeding bool      `db:"is_speeding" json:"is_speeding"`
	HasPhoto   bool      `db:"has_photo" json:"has_photo"`
	PhotoURL   *string   `db:"photo_url" json:"photo_url"`
	PhotoKey   *string   `db:"photo_key" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// EventStats aggregates a device's events over a time window.
type EventStats struct {
	TotalEvents    int      `db:"total_events" json:"total_events"`
	SpeedingEvents int      `db:"speeding_events" json:"speeding_events"`
	AvgSpeed       *float64 `db:"avg_speed" json:"avg_speed"`
	MaxSpeed       *float64 `db:"max_speed" json:"max_speed"`
	MinSpeed       *float64 `db:"min_speed" json:"min_speed"`
}
