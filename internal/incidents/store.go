package incidents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lookout-dev/lookout/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns incident rows. At most one incident per monitor may have a null
// resolved_at; the partial unique index on the table is the real guard, the
// re-read in Create only shrinks how often the conflict path is taken.
type Store interface {
	// FindOpen returns nil, nil when the monitor has no open incident.
	FindOpen(ctx context.Context, monitorID uint) (*models.Incident, error)

	// Create opens an incident. When one is already open (including a
	// concurrent writer winning the race) the open incident is returned
	// with created=false and no row is written.
	Create(ctx context.Context, monitorID, workspaceID uint, startedAt time.Time) (incident *models.Incident, created bool, err error)

	// Resolve closes an incident. Resolving an already-resolved incident
	// is a no-op reported through resolved=false.
	Resolve(ctx context.Context, incidentID uint, resolvedAt time.Time, autoResolved bool) (resolved bool, err error)
}

type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{db: db, logger: logger}
}

func (s *GormStore) FindOpen(ctx context.Context, monitorID uint) (*models.Incident, error) {
	var incident models.Incident

	err := s.db.WithContext(ctx).
		Where("monitor_id = ? AND resolved_at IS NULL", monitorID).
		First(&incident).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to look up open incident: %w", err)
	}

	return &incident, nil
}

func (s *GormStore) Create(ctx context.Context, monitorID, workspaceID uint, startedAt time.Time) (*models.Incident, bool, error) {
	// Defensive re-read before the insert; concurrent callbacks that lose
	// the race below still collapse to a no-op via ON CONFLICT.
	if open, err := s.FindOpen(ctx, monitorID); err != nil {
		return nil, false, err
	} else if open != nil {
		return open, false, nil
	}

	incident := models.Incident{
		MonitorID:   monitorID,
		WorkspaceID: workspaceID,
		StartedAt:   startedAt,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&incident)

	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create incident: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		s.logger.Info("incident creation lost race, reusing open incident",
			zap.Uint("monitor_id", monitorID))

		open, err := s.FindOpen(ctx, monitorID)

		if err != nil {
			return nil, false, err
		}

		if open == nil {
			return nil, false, fmt.Errorf("incident insert conflicted but no open incident found for monitor %d", monitorID)
		}

		return open, false, nil
	}

	return &incident, true, nil
}

func (s *GormStore) Resolve(ctx context.Context, incidentID uint, resolvedAt time.Time, autoResolved bool) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Incident{}).
		Where("id = ? AND resolved_at IS NULL", incidentID).
		Updates(map[string]interface{}{
			"resolved_at":   resolvedAt,
			"auto_resolved": autoResolved,
		})

	if result.Error != nil {
		return false, fmt.Errorf("failed to resolve incident: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}
