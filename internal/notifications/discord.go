package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lookout-dev/lookout/internal/models"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

const (
	colorRed    = 16711680 // #FF0000 - monitor down
	colorGreen  = 65280    // #00FF00 - monitor recovered
	colorOrange = 16753920 // #FFA500 - monitor degraded

	senderUsername = "Lookout Monitor"
)

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// DiscordSender posts embed messages to a Discord webhook.
type DiscordSender struct{}

func (s *DiscordSender) send(ctx context.Context, channel models.NotificationChannel, title, description string, color int, fields []DiscordWebhookField) error {
	var config DiscordConfig

	if err := json.Unmarshal(channel.Config, &config); err != nil {
		return fmt.Errorf("invalid discord channel config: %w", err)
	}

	if config.WebhookURL == "" {
		return fmt.Errorf("discord channel %d has no webhook_url configured", channel.ID)
	}

	payload := DiscordWebhookRequest{
		Username: senderUsername,
		Embeds: []DiscordEmbed{
			{
				Title:       title,
				Description: description,
				Color:       color,
				Fields:      fields,
				Footer:      &DiscordFooter{Text: "Lookout Monitoring"},
				Timestamp:   time.Now().Format(time.RFC3339),
			},
		},
	}

	return postJSON(ctx, config.WebhookURL, nil, payload)
}

func discordBaseFields(monitor models.Monitor, nctx Context) []DiscordWebhookField {
	fields := []DiscordWebhookField{
		{Name: "Monitor", Value: monitor.Name, Inline: true},
		{Name: "Type", Value: monitor.JobKind, Inline: true},
		{Name: "Region", Value: nctx.Region, Inline: true},
	}

	if nctx.StatusCode != 0 {
		fields = append(fields, DiscordWebhookField{Name: "Status Code", Value: fmt.Sprintf("%d", nctx.StatusCode), Inline: true})
	}

	if nctx.LatencyMs > 0 {
		fields = append(fields, DiscordWebhookField{Name: "Latency", Value: fmt.Sprintf("%d ms", nctx.LatencyMs), Inline: true})
	}

	if nctx.Message != "" {
		fields = append(fields, DiscordWebhookField{Name: "Details", Value: nctx.Message, Inline: false})
	}

	return fields
}

func (s *DiscordSender) SendAlert(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	fields := discordBaseFields(monitor, nctx)

	if nctx.StartedAt != nil {
		fields = append(fields, DiscordWebhookField{Name: "Started At", Value: nctx.StartedAt.Format("2006-01-02 15:04:05 UTC"), Inline: true})
	}

	return s.send(ctx, channel,
		"🚨 **INCIDENT DETECTED**",
		fmt.Sprintf("**%s** has encountered an issue and requires attention.", monitor.Name),
		colorRed, fields)
}

func (s *DiscordSender) SendRecovery(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	fields := discordBaseFields(monitor, nctx)

	if nctx.StartedAt != nil && nctx.ResolvedAt != nil {
		duration := nctx.ResolvedAt.Sub(*nctx.StartedAt).Round(time.Second).String()
		fields = append(fields, DiscordWebhookField{Name: "Duration", Value: duration, Inline: true})
	}

	return s.send(ctx, channel,
		"✅ **INCIDENT RESOLVED**",
		fmt.Sprintf("**%s** is back to normal operation.", monitor.Name),
		colorGreen, fields)
}

func (s *DiscordSender) SendDegraded(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel,
		"⚠️ **PERFORMANCE DEGRADED**",
		fmt.Sprintf("**%s** is responding slower than its configured threshold.", monitor.Name),
		colorOrange, discordBaseFields(monitor, nctx))
}
