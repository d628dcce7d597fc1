package models

import "time"

// Incident represents a centrally re-verified, confirmed proctoring violation.
// It corresponds to the 'validated_incidents' table. The staged image filename
// doubles as the identity of the incident; duplicate deliveries of the same
// image must not produce a second row.
type Incident struct {
	ImageName      string    `gorm:"primaryKey" json:"image_name"`
	AlertType      string    `gorm:"not null;index" json:"alert_type"`
	ValidatedCount int       `gorm:"not null" json:"validated_count"`
	ValidationTime time.Time `gorm:"not null;index" json:"validation_time"`

	// CapturedAt is the EXIF capture timestamp of the incident image, when
	// the image carried one. Nullable.
	CapturedAt *int64 `gorm:"" json:"captured_at,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Incident) TableName() string {
	return "validated_incidents"
}
