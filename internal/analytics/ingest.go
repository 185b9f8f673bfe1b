package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lookout-dev/lookout/internal/probes"
	"go.uber.org/zap"
)

// ProbeRecord is one probe tick as published to the time-series backend.
type ProbeRecord struct {
	MonitorID     uint           `json:"monitor_id"`
	WorkspaceID   uint           `json:"workspace_id"`
	Region        string         `json:"region"`
	Status        string         `json:"status"`
	StatusCode    int            `json:"status_code,omitempty"`
	LatencyMs     int64          `json:"latency_ms"`
	Timings       probes.Timings `json:"timings"`
	Message       string         `json:"message,omitempty"`
	CronTimestamp int64          `json:"cron_timestamp"`
	CheckedAt     time.Time      `json:"checked_at"`
}

// Publisher accepts probe records for the analytics backend and reports how
// many rows the backend acknowledged. Zero accepted rows is a failure the
// caller must treat as such.
type Publisher interface {
	Publish(ctx context.Context, record ProbeRecord) (int64, error)
}

type ingestResponse struct {
	SuccessfulRows  int64 `json:"successful_rows"`
	QuarantinedRows int64 `json:"quarantined_rows"`
}

// IngestClient publishes probe records to a row-ingest HTTP API.
type IngestClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

func NewIngestClient(baseURL, token string, logger *zap.Logger) *IngestClient {
	return &IngestClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (c *IngestClient) Publish(ctx context.Context, record ProbeRecord) (int64, error) {
	body, err := json.Marshal(record)

	if err != nil {
		return 0, fmt.Errorf("failed to marshal probe record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v0/events?name=probe_results", bytes.NewBuffer(body))

	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)

	if err != nil {
		return 0, fmt.Errorf("failed to publish probe record: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("analytics ingest returned status %d", resp.StatusCode)
	}

	var result ingestResponse

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode ingest response: %w", err)
	}

	if result.QuarantinedRows > 0 {
		c.logger.Warn("analytics ingest quarantined rows",
			zap.Int64("quarantined", result.QuarantinedRows),
			zap.Uint("monitor_id", record.MonitorID))
	}

	return result.SuccessfulRows, nil
}

// NopPublisher acknowledges every record without sending it anywhere. Used
// when no analytics backend is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ProbeRecord) (int64, error) {
	return 1, nil
}
