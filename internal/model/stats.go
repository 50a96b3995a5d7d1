package model

import (
	"time"
)

// GlobalStatistics is the periodically refreshed fleet-wide summary.
type GlobalStatistics struct {
	TotalDevices      int       `db:"total_devices" json:"total_devices"`
	CommunityDevices  int       `db:"community_devices" json:"community_devices"`
	TotalEvents       int       `db:"total_events" json:"total_events"`
	SpeedingEvents    int       `db:"speeding_events" json:"speeding_events"`
	RecentEvents24h   int       `db:"recent_events_24h" json:"recent_events_24h"`
	RecentSpeeding24h int       `db:"recent_speeding_24h" json:"recent_speeding_24h"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
