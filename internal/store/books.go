package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/local/marginalia/internal/models"
)

// SaveBook writes the analysis, pages and marginalia of a job in one transaction.
func (d *DB) SaveBook(ctx context.Context, jobID uint, analysis *models.BookAnalysis, pages []models.BookPage) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		analysis.JobID = jobID
		if err := tx.Create(analysis).Error; err != nil {
			return fmt.Errorf("save analysis: %w", err)
		}
		for i := range pages {
			pages[i].JobID = jobID
		}
		if len(pages) > 0 {
			if err := tx.Create(&pages).Error; err != nil {
				return fmt.Errorf("save pages: %w", err)
			}
		}
		return nil
	})
}

// LoadBook returns the stored analysis (nil when absent) and pages
// ordered by page number with their marginalia. It never writes.
func (d *DB) LoadBook(ctx context.Context, jobID uint) (*models.BookAnalysis, []models.BookPage, error) {
	db := d.db.WithContext(ctx)

	var analysis models.BookAnalysis
	found := true
	if err := db.Where("job_id = ?", jobID).First(&analysis).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("load analysis %d: %w", jobID, err)
		}
		found = false
	}

	var pages []models.BookPage
	err := db.Where("job_id = ?", jobID).
		Order("page_number").
		Preload("Marginalia", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Find(&pages).Error
	if err != nil {
		return nil, nil, fmt.Errorf("load pages %d: %w", jobID, err)
	}

	if !found {
		return nil, pages, nil
	}
	return &analysis, pages, nil
}
