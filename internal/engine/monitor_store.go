package engine

import (
	"context"
	"fmt"

	"github.com/lookout-dev/lookout/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GormMonitorStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormMonitorStore(db *gorm.DB, logger *zap.Logger) *GormMonitorStore {
	return &GormMonitorStore{db: db, logger: logger}
}

func (s *GormMonitorStore) Find(ctx context.Context, id uint) (*models.Monitor, error) {
	var monitor models.Monitor

	if err := s.db.WithContext(ctx).First(&monitor, id).Error; err != nil {
		return nil, fmt.Errorf("failed to load monitor %d: %w", id, err)
	}

	return &monitor, nil
}

func (s *GormMonitorStore) UpdateStatus(ctx context.Context, id uint, status string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Monitor{}).
		Where("id = ?", id).
		Update("status", status).Error

	if err != nil {
		return fmt.Errorf("failed to update monitor status: %w", err)
	}

	return nil
}

func (s *GormMonitorStore) Channels(ctx context.Context, monitorID uint) ([]models.NotificationChannel, error) {
	var monitor models.Monitor

	err := s.db.WithContext(ctx).Preload("Channels").First(&monitor, monitorID).Error

	if err != nil {
		return nil, fmt.Errorf("failed to load channels for monitor %d: %w", monitorID, err)
	}

	return monitor.Channels, nil
}
