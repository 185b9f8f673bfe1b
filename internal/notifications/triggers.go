package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/lookout-dev/lookout/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Retention of dedup rows. Occurrence ids never recur, so expired rows only
// matter for storage; a periodic sweep prunes them.
const triggerRetention = 24 * time.Hour

// TriggerStore persists the at-most-once delivery markers. Claim inserts the
// marker and reports whether this caller won; a false return means another
// delivery already claimed the (monitor, occurrence, channel, kind) tuple.
type TriggerStore interface {
	Claim(ctx context.Context, monitorID uint, occurrenceID string, channelID uint, kind string) (bool, error)
}

type GormTriggerStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormTriggerStore(db *gorm.DB, logger *zap.Logger) *GormTriggerStore {
	return &GormTriggerStore{db: db, logger: logger}
}

func (s *GormTriggerStore) Claim(ctx context.Context, monitorID uint, occurrenceID string, channelID uint, kind string) (bool, error) {
	trigger := models.NotificationTrigger{
		MonitorID:    monitorID,
		OccurrenceID: occurrenceID,
		ChannelID:    channelID,
		Kind:         kind,
		ExpiresAt:    time.Now().UTC().Add(triggerRetention),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&trigger)

	if result.Error != nil {
		return false, fmt.Errorf("failed to claim notification trigger: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// PruneExpired deletes dedup rows past their retention window.
func (s *GormTriggerStore) PruneExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Unscoped().
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&models.NotificationTrigger{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune notification triggers: %w", result.Error)
	}

	return result.RowsAffected, nil
}
