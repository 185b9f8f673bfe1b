package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lookout-dev/lookout/internal/audit"
	"github.com/lookout-dev/lookout/internal/cache"
	"github.com/lookout-dev/lookout/internal/metrics"
	"github.com/lookout-dev/lookout/internal/models"
	"go.uber.org/zap"
)

// Cache keys for claimed deliveries live as long as the durable trigger rows.
const dedupTTL = 24 * time.Hour

// Dispatcher fans one logical occurrence out to every channel linked to a
// monitor, at most once per (monitor, occurrence, channel, kind). The durable
// trigger row is the canonical guard; the cache SetIfAbsent in front of it is
// a fast path that survives webhook retry storms without touching the
// database. A provider send failure never releases the claim.
type Dispatcher struct {
	triggers TriggerStore
	cache    cache.Cache
	registry *Registry
	sink     audit.Sink
	logger   *zap.Logger
}

func NewDispatcher(triggers TriggerStore, c cache.Cache, registry *Registry, sink audit.Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		triggers: triggers,
		cache:    c,
		registry: registry,
		sink:     sink,
		logger:   logger,
	}
}

// Dispatch delivers one notification of the given kind per channel. Send
// failures are collected and surfaced after every channel has been attempted;
// dedup skips and claim conflicts are successful no-ops.
func (d *Dispatcher) Dispatch(ctx context.Context, kind string, monitor models.Monitor, channels []models.NotificationChannel, nctx Context) error {
	var errs []error

	for _, channel := range channels {
		if err := d.dispatchOne(ctx, kind, monitor, channel, nctx); err != nil {
			errs = append(errs, fmt.Errorf("channel %d (%s): %w", channel.ID, channel.Kind, err))
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) dispatchOne(ctx context.Context, kind string, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	key := dedupKey(monitor.ID, nctx.OccurrenceID, channel.ID, kind)

	fresh, err := d.cache.SetIfAbsent(ctx, key, "1", dedupTTL)

	if err != nil {
		// A cache outage degrades to the durable guard alone.
		d.logger.Warn("dedup cache unavailable, relying on trigger row",
			zap.String("key", key), zap.Error(err))
	} else if !fresh {
		metrics.NotificationsDeduped.WithLabelValues(kind, channel.Kind).Inc()
		d.logger.Info("notification already delivered, skipping",
			zap.Uint("monitor_id", monitor.ID),
			zap.String("occurrence_id", nctx.OccurrenceID),
			zap.String("kind", kind))
		return nil
	}

	claimed, err := d.triggers.Claim(ctx, monitor.ID, nctx.OccurrenceID, channel.ID, kind)

	if err != nil {
		return err
	}

	if !claimed {
		metrics.NotificationsDeduped.WithLabelValues(kind, channel.Kind).Inc()
		d.logger.Info("notification trigger already claimed, skipping",
			zap.Uint("monitor_id", monitor.ID),
			zap.String("occurrence_id", nctx.OccurrenceID),
			zap.String("kind", kind))
		return nil
	}

	sendErr := d.send(ctx, kind, monitor, channel, nctx)

	if sendErr == nil {
		metrics.NotificationsSent.WithLabelValues(kind, channel.Kind).Inc()
	} else {
		d.logger.Error("provider send failed, claim kept to avoid retry storm",
			zap.Uint("monitor_id", monitor.ID),
			zap.Uint("channel_id", channel.ID),
			zap.String("kind", kind),
			zap.Error(sendErr))
	}

	// Audited regardless of send outcome.
	entry := audit.NewEntry("notification."+kind, []audit.Target{
		{ID: strconv.FormatUint(uint64(monitor.ID), 10), Type: "monitor"},
		{ID: strconv.FormatUint(uint64(channel.ID), 10), Type: "notification_channel"},
	}, map[string]interface{}{
		"occurrence_id": nctx.OccurrenceID,
		"provider":      channel.Kind,
		"region":        nctx.Region,
		"delivered":     sendErr == nil,
	})

	if err := d.sink.Publish(ctx, entry); err != nil {
		d.logger.Warn("audit publish failed", zap.Error(err))
	}

	return sendErr
}

func (d *Dispatcher) send(ctx context.Context, kind string, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	sender, ok := d.registry.Lookup(channel.Kind)

	if !ok {
		return fmt.Errorf("no provider registered for channel kind %q", channel.Kind)
	}

	switch kind {
	case KindAlert:
		return sender.SendAlert(ctx, monitor, channel, nctx)
	case KindRecovery:
		return sender.SendRecovery(ctx, monitor, channel, nctx)
	case KindDegraded:
		return sender.SendDegraded(ctx, monitor, channel, nctx)
	default:
		return fmt.Errorf("unsupported notification kind %q", kind)
	}
}

func dedupKey(monitorID uint, occurrenceID string, channelID uint, kind string) string {
	return fmt.Sprintf("notif:%d:%s:%d:%s", monitorID, occurrenceID, channelID, kind)
}
