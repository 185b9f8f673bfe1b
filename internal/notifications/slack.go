package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lookout-dev/lookout/internal/models"
)

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// SlackSender posts attachment messages to a Slack incoming webhook.
type SlackSender struct{}

func (s *SlackSender) send(ctx context.Context, channel models.NotificationChannel, emoji, text, color, title string, fields []SlackField) error {
	var config SlackConfig

	if err := json.Unmarshal(channel.Config, &config); err != nil {
		return fmt.Errorf("invalid slack channel config: %w", err)
	}

	if config.WebhookURL == "" {
		return fmt.Errorf("slack channel %d has no webhook_url configured", channel.ID)
	}

	payload := SlackWebhookRequest{
		Username:  senderUsername,
		IconEmoji: emoji,
		Text:      text,
		Attachments: []SlackAttachment{
			{
				Color:     color,
				Title:     title,
				Fields:    fields,
				Footer:    "Lookout Monitoring",
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return postJSON(ctx, config.WebhookURL, nil, payload)
}

func slackBaseFields(monitor models.Monitor, nctx Context) []SlackField {
	fields := []SlackField{
		{Title: "Monitor", Value: monitor.Name, Short: true},
		{Title: "Type", Value: monitor.JobKind, Short: true},
		{Title: "Region", Value: nctx.Region, Short: true},
	}

	if nctx.StatusCode != 0 {
		fields = append(fields, SlackField{Title: "Status Code", Value: fmt.Sprintf("%d", nctx.StatusCode), Short: true})
	}

	if nctx.LatencyMs > 0 {
		fields = append(fields, SlackField{Title: "Latency", Value: fmt.Sprintf("%d ms", nctx.LatencyMs), Short: true})
	}

	if nctx.Message != "" {
		fields = append(fields, SlackField{Title: "Details", Value: nctx.Message, Short: false})
	}

	return fields
}

func (s *SlackSender) SendAlert(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel, ":rotating_light:", ":rotating_light: *INCIDENT DETECTED*", "danger",
		fmt.Sprintf("Monitor '%s' has encountered an issue", monitor.Name),
		slackBaseFields(monitor, nctx))
}

func (s *SlackSender) SendRecovery(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	fields := slackBaseFields(monitor, nctx)

	if nctx.StartedAt != nil && nctx.ResolvedAt != nil {
		duration := nctx.ResolvedAt.Sub(*nctx.StartedAt).Round(time.Second).String()
		fields = append(fields, SlackField{Title: "Duration", Value: duration, Short: true})
	}

	return s.send(ctx, channel, ":white_check_mark:", ":white_check_mark: *INCIDENT RESOLVED*", "good",
		fmt.Sprintf("Monitor '%s' is back to normal operation", monitor.Name),
		fields)
}

func (s *SlackSender) SendDegraded(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel, ":warning:", ":warning: *PERFORMANCE DEGRADED*", "warning",
		fmt.Sprintf("Monitor '%s' is responding slower than its configured threshold", monitor.Name),
		slackBaseFields(monitor, nctx))
}
