package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lookout-dev/lookout/internal/analytics"
	"github.com/lookout-dev/lookout/internal/assertions"
	"github.com/lookout-dev/lookout/internal/engine"
	"github.com/lookout-dev/lookout/internal/metrics"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/lookout-dev/lookout/internal/probes"
	"github.com/lookout-dev/lookout/internal/types"
	"go.uber.org/zap"
)

// StatusUpdater is the engine's status-update path as the runner sees it.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, update engine.StatusUpdate) error
}

// CheckStore records probe ticks in the local check log the dashboard reads.
type CheckStore interface {
	Record(ctx context.Context, check models.MonitorCheck) error
}

// Runner executes one probe tick for a (monitor, region) pair: probe, assert,
// classify, publish, and hand the classification to the status-update path.
// Every tick reports; the engine collapses re-confirmations of the current
// monitor status to no-ops, so the runner never needs a fresh monitor row to
// decide whether a transition happened. Probe and publish each get exactly
// two attempts with no backoff; a tick that still fails after that is
// surfaced to the scheduler, which owns any further re-scheduling.
type Runner struct {
	publisher analytics.Publisher
	updater   StatusUpdater
	checks    CheckStore
	logger    *zap.Logger
}

func New(publisher analytics.Publisher, updater StatusUpdater, checks CheckStore, logger *zap.Logger) *Runner {
	return &Runner{
		publisher: publisher,
		updater:   updater,
		checks:    checks,
		logger:    logger,
	}
}

// RunTick performs one probe tick. The returned error means the tick itself
// failed (probe and publish exhausted); an unhealthy target is not an error
// here, it becomes an `error` classification instead.
func (r *Runner) RunTick(ctx context.Context, monitor models.Monitor, region string, tickTime time.Time) error {
	outcome, probeErr := r.probe(ctx, monitor)

	if probeErr != nil {
		r.logger.Info("probe attempt failed, retrying",
			zap.Uint("monitor_id", monitor.ID),
			zap.String("region", region),
			zap.Error(probeErr))

		outcome, probeErr = r.probe(ctx, monitor)
	}

	tickStatus, message := r.classify(monitor, outcome, probeErr)

	metrics.ProbeTicks.WithLabelValues(monitor.JobKind, tickStatus).Inc()
	metrics.ProbeLatency.WithLabelValues(monitor.JobKind, region).
		Observe(float64(outcome.LatencyMs) / 1000)

	record := analytics.ProbeRecord{
		MonitorID:     monitor.ID,
		WorkspaceID:   monitor.WorkspaceID,
		Region:        region,
		Status:        tickStatus,
		StatusCode:    outcome.Facts.StatusCode,
		LatencyMs:     outcome.LatencyMs,
		Timings:       outcome.Timings,
		Message:       message,
		CronTimestamp: tickTime.UnixMilli(),
		CheckedAt:     time.Now().UTC(),
	}

	if err := r.publish(ctx, record); err != nil {
		metrics.TickFailures.Inc()
		return err
	}

	r.recordCheck(ctx, monitor, region, tickStatus, message, outcome, tickTime)

	update := engine.StatusUpdate{
		MonitorID:     monitor.ID,
		Region:        region,
		Status:        tickStatus,
		StatusCode:    outcome.Facts.StatusCode,
		Message:       message,
		CronTimestamp: tickTime.UnixMilli(),
		LatencyMs:     outcome.LatencyMs,
	}

	if err := r.updater.UpdateStatus(ctx, update); err != nil {
		return fmt.Errorf("status update failed: %w", err)
	}

	return nil
}

func (r *Runner) probe(ctx context.Context, monitor models.Monitor) (probes.Outcome, error) {
	switch monitor.JobKind {
	case "http":
		var config types.HttpConfig

		if err := json.Unmarshal(monitor.Config, &config); err != nil {
			return probes.Outcome{}, fmt.Errorf("invalid HTTP config for monitor %d: %w", monitor.ID, err)
		}

		return probes.CheckHTTP(ctx, &config)
	case "tcp":
		var config types.TCPConfig

		if err := json.Unmarshal(monitor.Config, &config); err != nil {
			return probes.Outcome{}, fmt.Errorf("invalid TCP config for monitor %d: %w", monitor.ID, err)
		}

		return probes.CheckTCP(ctx, &config)
	case "dns":
		var config types.DNSConfig

		if err := json.Unmarshal(monitor.Config, &config); err != nil {
			return probes.Outcome{}, fmt.Errorf("invalid DNS config for monitor %d: %w", monitor.ID, err)
		}

		return probes.CheckDNS(ctx, &config)
	case "database":
		var config types.DatabaseConfig

		if err := json.Unmarshal(monitor.Config, &config); err != nil {
			return probes.Outcome{}, fmt.Errorf("invalid database config for monitor %d: %w", monitor.ID, err)
		}

		return probes.CheckDatabase(ctx, &config)
	default:
		return probes.Outcome{}, fmt.Errorf("unsupported job kind: %s", monitor.JobKind)
	}
}

func (r *Runner) classify(monitor models.Monitor, outcome probes.Outcome, probeErr error) (string, string) {
	if probeErr != nil {
		return models.MonitorStatusError, probeErr.Error()
	}

	list, err := assertions.ParseList(monitor.Assertions)

	if err != nil {
		return models.MonitorStatusError, err.Error()
	}

	if res := assertions.EvaluateAll(list, outcome.Facts); !res.Success {
		return models.MonitorStatusError, res.Message
	}

	if monitor.DegradedAfterMs > 0 && outcome.LatencyMs > int64(monitor.DegradedAfterMs) {
		return models.MonitorStatusDegraded,
			fmt.Sprintf("latency %dms exceeded degraded threshold %dms", outcome.LatencyMs, monitor.DegradedAfterMs)
	}

	return models.MonitorStatusActive, ""
}

// publish writes the record to the analytics backend, treating zero accepted
// rows as a failure. One attempt, one retry, no backoff.
func (r *Runner) publish(ctx context.Context, record analytics.ProbeRecord) error {
	err := r.publishOnce(ctx, record)

	if err == nil {
		return nil
	}

	r.logger.Info("analytics publish failed, retrying",
		zap.Uint("monitor_id", record.MonitorID),
		zap.Error(err))

	if err := r.publishOnce(ctx, record); err != nil {
		return fmt.Errorf("analytics publish failed after retry: %w", err)
	}

	return nil
}

func (r *Runner) publishOnce(ctx context.Context, record analytics.ProbeRecord) error {
	rows, err := r.publisher.Publish(ctx, record)

	if err != nil {
		return err
	}

	if rows == 0 {
		return fmt.Errorf("analytics accepted zero rows for monitor %d", record.MonitorID)
	}

	return nil
}

func (r *Runner) recordCheck(ctx context.Context, monitor models.Monitor, region, tickStatus, message string, outcome probes.Outcome, tickTime time.Time) {
	timings, err := json.Marshal(outcome.Timings)

	if err != nil {
		timings = nil
	}

	check := models.MonitorCheck{
		MonitorID:  monitor.ID,
		Region:     region,
		Status:     tickStatus,
		StatusCode: outcome.Facts.StatusCode,
		LatencyMs:  int(outcome.LatencyMs),
		Message:    message,
		Timings:    timings,
		CheckedAt:  tickTime,
	}

	if err := r.checks.Record(ctx, check); err != nil {
		r.logger.Error("failed to store check result",
			zap.Uint("monitor_id", monitor.ID),
			zap.Error(err))
	}
}
