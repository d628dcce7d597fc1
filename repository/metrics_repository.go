package repository

import (
	"fmt"
	"log"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/camden-git/proctorhub/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// MetricsRepository handles database operations for verification metrics and
// edge heartbeats
type MetricsRepository struct {
	DB *gorm.DB
}

// NewMetricsRepository creates a new instance of MetricsRepository
func NewMetricsRepository(db *gorm.DB) *MetricsRepository {
	return &MetricsRepository{DB: db}
}

// RecordVerification appends a metric row for a verification attempt. Only
// validated and false-positive outcomes are counted toward accuracy
// statistics; anything else is a silent no-op.
func (r *MetricsRepository) RecordVerification(alertType string, isValidated, isFalsePositive bool) error {
	if !isValidated && !isFalsePositive {
		return nil
	}
	metric := models.VerificationMetric{
		AlertType:        alertType,
		IsValidated:      isValidated,
		IsFalsePositive:  isFalsePositive,
		VerificationTime: time.Now(),
	}
	if err := r.DB.Create(&metric).Error; err != nil {
		return fmt.Errorf("failed to record verification metric for %s: %w", alertType, err)
	}
	return nil
}

// RecordHeartbeat appends an edge efficiency heartbeat row
func (r *MetricsRepository) RecordHeartbeat(hb *models.Heartbeat) error {
	if hb.Timestamp.IsZero() {
		hb.Timestamp = time.Now()
	}
	if err := r.DB.Create(hb).Error; err != nil {
		return fmt.Errorf("failed to record heartbeat for device %s: %w", hb.DeviceID, err)
	}
	return nil
}

// verificationAggRow is the scan target for the grouped verification query
type verificationAggRow struct {
	AlertType     string
	Total         int
	Validated     int
	FalsePositive int
}

// heartbeatAggRow is the scan target for the summed heartbeat query
type heartbeatAggRow struct {
	Processed *int
	Discarded *int
	Incidents *int
}

// ReadAndClearAggregates captures the current rolling-window statistics and
// resets the window. The aggregation and the deletes run in one transaction
// so a metric row is observed in exactly one snapshot: either this one, or,
// if it lands after the transaction, the next one.
func (r *MetricsRepository) ReadAndClearAggregates() (StatsSnapshot, error) {
	snapshot := StatsSnapshot{
		VerificationStats: make(map[string]AlertTypeStats),
	}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		verifySQL, verifyArgs, err := psql.
			Select(
				"alert_type",
				"COUNT(*) AS total",
				"SUM(CASE WHEN is_validated THEN 1 ELSE 0 END) AS validated",
				"SUM(CASE WHEN is_false_positive THEN 1 ELSE 0 END) AS false_positive",
			).
			From(models.VerificationMetric{}.TableName()).
			GroupBy("alert_type").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build verification aggregate query: %w", err)
		}

		var verifyRows []verificationAggRow
		if err := tx.Raw(verifySQL, verifyArgs...).Scan(&verifyRows).Error; err != nil {
			return fmt.Errorf("failed to aggregate verification metrics: %w", err)
		}
		for _, row := range verifyRows {
			snapshot.VerificationStats[row.AlertType] = AlertTypeStats{
				Total:         row.Total,
				Validated:     row.Validated,
				FalsePositive: row.FalsePositive,
			}
		}

		hbSQL, hbArgs, err := psql.
			Select(
				"SUM(frames_processed) AS processed",
				"SUM(frames_discarded) AS discarded",
				"SUM(local_incidents) AS incidents",
			).
			From(models.Heartbeat{}.TableName()).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build heartbeat aggregate query: %w", err)
		}

		var hbRow heartbeatAggRow
		if err := tx.Raw(hbSQL, hbArgs...).Scan(&hbRow).Error; err != nil {
			return fmt.Errorf("failed to aggregate heartbeats: %w", err)
		}
		if hbRow.Processed != nil {
			snapshot.EfficiencyStats = EfficiencyStats{
				TotalFramesProcessed:    *hbRow.Processed,
				TotalFramesDiscarded:    intOrZero(hbRow.Discarded),
				LocalIncidentsTriggered: intOrZero(hbRow.Incidents),
				BandwidthSavedPercent:   BandwidthSavedPercent(*hbRow.Processed, intOrZero(hbRow.Discarded)),
			}
		}

		if err := tx.Where("1 = 1").Delete(&models.VerificationMetric{}).Error; err != nil {
			return fmt.Errorf("failed to clear verification metrics: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&models.Heartbeat{}).Error; err != nil {
			return fmt.Errorf("failed to clear heartbeats: %w", err)
		}
		return nil
	})
	if err != nil {
		return StatsSnapshot{}, err
	}

	log.Printf("metrics: captured and cleared window (%d alert types, %d frames processed)",
		len(snapshot.VerificationStats), snapshot.EfficiencyStats.TotalFramesProcessed)
	return snapshot, nil
}

// BandwidthSavedPercent computes the share of captured frames the edge
// discarded locally instead of uploading, rounded to two decimals. Zero
// frames processed yields zero rather than a division error.
func BandwidthSavedPercent(processed, discarded int) float64 {
	if processed <= 0 {
		return 0
	}
	return math.Round(float64(discarded)/float64(processed)*100*100) / 100
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
