package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lookout-dev/lookout/internal/models"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func postJSON(ctx context.Context, url string, headers map[string]string, payload interface{}) error {
	body, err := json.Marshal(payload)

	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := httpClient.Do(req)

	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type webhookPayload struct {
	Kind         string `json:"kind"`
	Monitor      string `json:"monitor"`
	MonitorID    uint   `json:"monitor_id"`
	JobKind      string `json:"job_kind"`
	Status       string `json:"status"`
	Region       string `json:"region,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
	Message      string `json:"message,omitempty"`
	LatencyMs    int64  `json:"latency_ms,omitempty"`
	OccurrenceID string `json:"occurrence_id"`
	Timestamp    string `json:"timestamp"`
}

// WebhookSender posts a plain JSON event to a user-supplied endpoint.
type WebhookSender struct{}

func (s *WebhookSender) send(ctx context.Context, kind string, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	var config WebhookConfig

	if err := json.Unmarshal(channel.Config, &config); err != nil {
		return fmt.Errorf("invalid webhook channel config: %w", err)
	}

	if config.URL == "" {
		return fmt.Errorf("webhook channel %d has no url configured", channel.ID)
	}

	return postJSON(ctx, config.URL, config.Headers, webhookPayload{
		Kind:         kind,
		Monitor:      monitor.Name,
		MonitorID:    monitor.ID,
		JobKind:      monitor.JobKind,
		Status:       monitor.Status,
		Region:       nctx.Region,
		StatusCode:   nctx.StatusCode,
		Message:      nctx.Message,
		LatencyMs:    nctx.LatencyMs,
		OccurrenceID: nctx.OccurrenceID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *WebhookSender) SendAlert(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, KindAlert, monitor, channel, nctx)
}

func (s *WebhookSender) SendRecovery(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, KindRecovery, monitor, channel, nctx)
}

func (s *WebhookSender) SendDegraded(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, KindDegraded, monitor, channel, nctx)
}
