package status

import (
	"context"
	"fmt"
	"time"

	"github.com/lookout-dev/lookout/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store keeps the latest health label per (monitor, region). Upsert-only,
// last write wins, no history; the time-series backend owns history.
type Store interface {
	Upsert(ctx context.Context, monitorID uint, region, status string) error
	CountByStatus(ctx context.Context, monitorID uint, regions []string, status string) (int, error)
}

type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{db: db, logger: logger}
}

func (s *GormStore) Upsert(ctx context.Context, monitorID uint, region, status string) error {
	row := models.RegionStatus{
		MonitorID: monitorID,
		Region:    region,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "monitor_id"}, {Name: "region"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&row).Error

	if err != nil {
		return fmt.Errorf("failed to upsert region status: %w", err)
	}

	return nil
}

func (s *GormStore) CountByStatus(ctx context.Context, monitorID uint, regions []string, status string) (int, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&models.RegionStatus{}).
		Where("monitor_id = ? AND region IN ? AND status = ?", monitorID, regions, status).
		Count(&count).Error

	if err != nil {
		return 0, fmt.Errorf("failed to count region statuses: %w", err)
	}

	return int(count), nil
}
