package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/reachscan/pkg/model"
)

// GormCheckRepository implements CheckRepository using GORM.
type GormCheckRepository struct {
	db *gorm.DB
}

// NewGormCheckRepository creates a new GormCheckRepository.
func NewGormCheckRepository(db *gorm.DB) *GormCheckRepository {
	return &GormCheckRepository{db: db}
}

// Migrate creates or updates the check_records table.
func (r *GormCheckRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&CheckRecord{}); err != nil {
		return fmt.Errorf("failed to migrate check records: %w", err)
	}
	return nil
}

// Save stores report.
func (r *GormCheckRepository) Save(ctx context.Context, report *model.Report) error {
	record, err := NewCheckRecord(report)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save check %s: %w", report.CheckID, err)
	}
	return nil
}

// Get retrieves the report for checkID.
func (r *GormCheckRepository) Get(ctx context.Context, checkID string) (*model.Report, error) {
	var record CheckRecord

	err := r.db.WithContext(ctx).Where("check_id = ?", checkID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, checkID)
		}
		return nil, fmt.Errorf("failed to get check: %w", err)
	}
	return record.ToModel()
}

// List returns up to limit reports, newest first. A non-positive limit
// means 20.
func (r *GormCheckRepository) List(ctx context.Context, limit int) ([]*model.Report, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []CheckRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}

	reports := make([]*model.Report, 0, len(records))
	for i := range records {
		report, err := records[i].ToModel()
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
