package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lookout-dev/lookout/internal/audit"
	"github.com/lookout-dev/lookout/internal/incidents"
	"github.com/lookout-dev/lookout/internal/metrics"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/lookout-dev/lookout/internal/notifications"
	"github.com/lookout-dev/lookout/internal/status"
	"go.uber.org/zap"
)

// MonitorStore is the slice of monitor persistence the engine needs: read the
// monitor, flip its status, list its linked channels. Everything else about
// monitors belongs to the resource-management layer.
type MonitorStore interface {
	Find(ctx context.Context, id uint) (*models.Monitor, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	Channels(ctx context.Context, monitorID uint) ([]models.NotificationChannel, error)
}

// Notifier fans a notification kind out to the monitor's channels.
type Notifier interface {
	Dispatch(ctx context.Context, kind string, monitor models.Monitor, channels []models.NotificationChannel, nctx notifications.Context) error
}

// Broadcaster pushes a refresh hint to dashboard subscribers of a workspace.
type Broadcaster interface {
	BroadcastRefresh(workspaceID uint)
}

// StatusUpdate is one per-(monitor, region, tick) callback from the probe
// layer. CronTimestamp is the tick's epoch milliseconds and doubles as the
// degraded occurrence id.
type StatusUpdate struct {
	MonitorID     uint
	Region        string
	Status        string
	StatusCode    int
	Message       string
	CronTimestamp int64
	LatencyMs     int64
}

// Engine turns per-region status reports into monitor-level transitions,
// incidents and notifications. Every write it performs is independently
// idempotent; concurrent or replayed callbacks collapse to no-ops instead of
// duplicating incidents or deliveries, so no cross-service transaction is
// needed.
type Engine struct {
	regions     status.Store
	incidents   incidents.Store
	monitors    MonitorStore
	notifier    Notifier
	sink        audit.Sink
	broadcaster Broadcaster
	logger      *zap.Logger
}

func New(regions status.Store, incidentStore incidents.Store, monitors MonitorStore, notifier Notifier, sink audit.Sink, broadcaster Broadcaster, logger *zap.Logger) *Engine {
	return &Engine{
		regions:     regions,
		incidents:   incidentStore,
		monitors:    monitors,
		notifier:    notifier,
		sink:        sink,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func validStatus(s string) bool {
	switch s {
	case models.MonitorStatusActive, models.MonitorStatusDegraded, models.MonitorStatusError:
		return true
	default:
		return false
	}
}

// UpdateStatus records a region's report and, when a cross-region quorum
// confirms the reported status and it differs from the monitor's current one,
// drives the incident state machine and notification dispatch. Runs to
// completion once accepted; there is no mid-flight cancellation.
func (e *Engine) UpdateStatus(ctx context.Context, update StatusUpdate) error {
	if !validStatus(update.Status) {
		return fmt.Errorf("invalid status %q", update.Status)
	}

	monitor, err := e.monitors.Find(ctx, update.MonitorID)

	if err != nil {
		return err
	}

	if err := e.regions.Upsert(ctx, monitor.ID, update.Region, update.Status); err != nil {
		return err
	}

	affected, err := e.regions.CountByStatus(ctx, monitor.ID, monitor.Regions, update.Status)

	if err != nil {
		return err
	}

	// No region currently reports the target status: nothing to evaluate
	// beyond the upsert above.
	if affected == 0 {
		return nil
	}

	if !status.QuorumReached(affected, len(monitor.Regions)) {
		e.logger.Debug("quorum not reached",
			zap.Uint("monitor_id", monitor.ID),
			zap.String("status", update.Status),
			zap.Int("affected", affected),
			zap.Int("regions", len(monitor.Regions)))
		return nil
	}

	// Re-confirming the current status is a no-op; this is what makes
	// replayed ticks idempotent.
	if monitor.Status == update.Status {
		return nil
	}

	tickTime := time.UnixMilli(update.CronTimestamp).UTC()

	if update.CronTimestamp == 0 {
		tickTime = time.Now().UTC()
	}

	previous := monitor.Status

	if err := e.monitors.UpdateStatus(ctx, monitor.ID, update.Status); err != nil {
		return err
	}

	// Providers see the post-transition status, not the row loaded above.
	monitor.Status = update.Status

	metrics.StatusTransitions.WithLabelValues(update.Status).Inc()

	e.logger.Info("monitor status changed",
		zap.Uint("monitor_id", monitor.ID),
		zap.String("from", previous),
		zap.String("to", update.Status),
		zap.String("region", update.Region),
		zap.Int("affected_regions", affected))

	nctx := notifications.Context{
		Region:        update.Region,
		StatusCode:    update.StatusCode,
		Message:       update.Message,
		LatencyMs:     update.LatencyMs,
		CronTimestamp: update.CronTimestamp,
	}

	var (
		kind        string
		dispatchErr error
	)

	switch update.Status {
	case models.MonitorStatusError:
		kind = notifications.KindAlert

		incident, created, err := e.incidents.Create(ctx, monitor.ID, monitor.WorkspaceID, tickTime)

		if err != nil {
			return err
		}

		if created {
			metrics.StatusTransitions.WithLabelValues("incident_opened").Inc()
		}

		nctx.OccurrenceID = strconv.FormatUint(uint64(incident.ID), 10)
		nctx.StartedAt = &incident.StartedAt

	case models.MonitorStatusDegraded:
		kind = notifications.KindDegraded

		// Degraded never opens an incident, but leaving error territory
		// closes the open one.
		if previous == models.MonitorStatusError {
			if err := e.resolveOpenIncident(ctx, monitor.ID, tickTime); err != nil {
				return err
			}
		}

		nctx.OccurrenceID = strconv.FormatInt(update.CronTimestamp, 10)

	case models.MonitorStatusActive:
		kind = notifications.KindRecovery

		// The occurrence is the incident being resolved; a recovery from
		// the degraded tier has none, so the tick timestamp stands in.
		nctx.OccurrenceID = strconv.FormatInt(update.CronTimestamp, 10)

		if previous == models.MonitorStatusError {
			incident, err := e.incidents.FindOpen(ctx, monitor.ID)

			if err != nil {
				return err
			}

			if incident != nil {
				resolved, err := e.incidents.Resolve(ctx, incident.ID, tickTime, true)

				if err != nil {
					return err
				}

				if !resolved {
					e.logger.Info("incident already resolved",
						zap.Uint("incident_id", incident.ID))
				}

				nctx.OccurrenceID = strconv.FormatUint(uint64(incident.ID), 10)
				nctx.StartedAt = &incident.StartedAt
				nctx.ResolvedAt = &tickTime
			}
		}
	}

	channels, err := e.monitors.Channels(ctx, monitor.ID)

	if err != nil {
		return err
	}

	dispatchErr = e.notifier.Dispatch(ctx, kind, *monitor, channels, nctx)

	entry := audit.NewEntry("monitor.status_changed", []audit.Target{
		{ID: strconv.FormatUint(uint64(monitor.ID), 10), Type: "monitor"},
	}, map[string]interface{}{
		"from":     previous,
		"to":       update.Status,
		"region":   update.Region,
		"affected": affected,
	})

	if err := e.sink.Publish(ctx, entry); err != nil {
		e.logger.Warn("audit publish failed", zap.Error(err))
	}

	if e.broadcaster != nil {
		e.broadcaster.BroadcastRefresh(monitor.WorkspaceID)
	}

	return dispatchErr
}

func (e *Engine) resolveOpenIncident(ctx context.Context, monitorID uint, resolvedAt time.Time) error {
	incident, err := e.incidents.FindOpen(ctx, monitorID)

	if err != nil {
		return err
	}

	if incident == nil {
		return nil
	}

	resolved, err := e.incidents.Resolve(ctx, incident.ID, resolvedAt, true)

	if err != nil {
		return err
	}

	if !resolved {
		e.logger.Info("incident already resolved", zap.Uint("incident_id", incident.ID))
	}

	return nil
}
