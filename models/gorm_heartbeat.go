package models

import "time"

// Heartbeat is a periodic self-report from an edge device describing how much
// work it did locally and how much upload bandwidth its local filtering saved.
// Rows accumulate between reports and are cleared together with verification
// metrics. It corresponds to the 'heartbeat_stats' table.
type Heartbeat struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID        string    `gorm:"not null;index" json:"device_id"`
	Timestamp       time.Time `gorm:"not null" json:"timestamp"`
	DurationSeconds float64   `gorm:"not null" json:"duration_seconds"`
	FramesProcessed int       `gorm:"not null" json:"frames_processed"`
	FramesDiscarded int       `gorm:"not null" json:"frames_discarded"`
	LocalIncidents  int       `gorm:"not null" json:"local_incidents"`
}

func (Heartbeat) TableName() string {
	return "heartbeat_stats"
}
