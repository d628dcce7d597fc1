package models

import "time"

// VerificationMetric is one row per verification attempt that reached a
// validated or false-positive outcome. Rows accumulate between reports and
// are cleared atomically when aggregates are read.
// It corresponds to the 'verification_metrics' table.
type VerificationMetric struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AlertType        string    `gorm:"not null;index" json:"alert_type"`
	IsValidated      bool      `gorm:"not null" json:"is_validated"`
	IsFalsePositive  bool      `gorm:"not null" json:"is_false_positive"`
	VerificationTime time.Time `gorm:"not null" json:"verification_time"`
}

func (VerificationMetric) TableName() string {
	return "verification_metrics"
}
