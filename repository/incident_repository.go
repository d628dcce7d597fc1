package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/proctorhub/models"
)

// IncidentRepository handles database operations for confirmed incidents
type IncidentRepository struct {
	DB *gorm.DB
}

// NewIncidentRepository creates a new instance of IncidentRepository
func NewIncidentRepository(db *gorm.DB) *IncidentRepository {
	return &IncidentRepository{DB: db}
}

// Insert writes a confirmed incident row. Inserting an image name that is
// already present is a no-op, not an error: verification jobs may be delivered
// twice and the first-written values must win.
func (r *IncidentRepository) Insert(incident *models.Incident) error {
	result := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "image_name"}},
		DoNothing: true,
	}).Create(incident)
	if result.Error != nil {
		return fmt.Errorf("failed to insert incident %s: %w", incident.ImageName, result.Error)
	}
	return nil
}

// ListByValidationTime retrieves all confirmed incidents ordered by
// validation time ascending, the order the report renders them in.
func (r *IncidentRepository) ListByValidationTime() ([]models.Incident, error) {
	var incidents []models.Incident
	err := r.DB.Order("validation_time ASC").Find(&incidents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	return incidents, nil
}

// Count returns the number of confirmed incidents awaiting a report
func (r *IncidentRepository) Count() (int64, error) {
	var count int64
	if err := r.DB.Model(&models.Incident{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return count, nil
}

// DeleteByNames removes the incident rows with the given image names. Called
// only after a report has been successfully rendered; reporting consumes the
// incidents it listed, and rows inserted since that listing are untouched.
func (r *IncidentRepository) DeleteByNames(imageNames []string) error {
	if len(imageNames) == 0 {
		return nil
	}
	result := r.DB.Where("image_name IN ?", imageNames).Delete(&models.Incident{})
	if result.Error != nil {
		return fmt.Errorf("failed to clear reported incidents: %w", result.Error)
	}
	return nil
}
