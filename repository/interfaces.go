package repository

import (
	"github.com/camden-git/proctorhub/models"
)

// AlertTypeStats aggregates verification outcomes for a single alert type
// over the current reporting window.
type AlertTypeStats struct {
	Total         int `json:"total"`
	Validated     int `json:"validated"`
	FalsePositive int `json:"false_positive"`
}

// EfficiencyStats aggregates edge heartbeat rows over the current reporting
// window. BandwidthSavedPercent is discarded/processed * 100, rounded to two
// decimals, and defined as 0 when nothing was processed.
type EfficiencyStats struct {
	TotalFramesProcessed    int     `json:"total_frames_processed"`
	TotalFramesDiscarded    int     `json:"total_frames_discarded"`
	LocalIncidentsTriggered int     `json:"local_incidents_triggered"`
	BandwidthSavedPercent   float64 `json:"bandwidth_saved_percent"`
}

// StatsSnapshot is the atomically captured-and-cleared rolling window of
// verification and efficiency statistics.
type StatsSnapshot struct {
	VerificationStats map[string]AlertTypeStats `json:"verification_stats"`
	EfficiencyStats   EfficiencyStats           `json:"efficiency_stats"`
}

// IncidentRepositoryInterface defines the methods for confirmed incident
// data operations
type IncidentRepositoryInterface interface {
	Insert(incident *models.Incident) error
	ListByValidationTime() ([]models.Incident, error)
	Count() (int64, error)
	DeleteByNames(imageNames []string) error
}

// MetricsRepositoryInterface defines the methods for verification metric and
// heartbeat data operations
type MetricsRepositoryInterface interface {
	RecordVerification(alertType string, isValidated, isFalsePositive bool) error
	RecordHeartbeat(hb *models.Heartbeat) error
	ReadAndClearAggregates() (StatsSnapshot, error)
}
