package runner

import (
	"context"
	"fmt"

	"github.com/lookout-dev/lookout/internal/models"
	"gorm.io/gorm"
)

type GormCheckStore struct {
	db *gorm.DB
}

func NewGormCheckStore(db *gorm.DB) *GormCheckStore {
	return &GormCheckStore{db: db}
}

func (s *GormCheckStore) Record(ctx context.Context, check models.MonitorCheck) error {
	if err := s.db.WithContext(ctx).Create(&check).Error; err != nil {
		return fmt.Errorf("failed to store monitor check: %w", err)
	}

	return nil
}
