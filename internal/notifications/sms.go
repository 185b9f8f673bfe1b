package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lookout-dev/lookout/internal/models"
)

type SMSConfig struct {
	GatewayURL string `json:"gateway_url"`
	APIKey     string `json:"api_key"`
	To         string `json:"to"`
}

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// SMSSender posts short messages to an HTTP SMS gateway.
type SMSSender struct{}

func (s *SMSSender) send(ctx context.Context, channel models.NotificationChannel, message string) error {
	var config SMSConfig

	if err := json.Unmarshal(channel.Config, &config); err != nil {
		return fmt.Errorf("invalid sms channel config: %w", err)
	}

	if config.GatewayURL == "" || config.To == "" {
		return fmt.Errorf("sms channel %d is missing gateway_url or recipient", channel.ID)
	}

	headers := map[string]string{}

	if config.APIKey != "" {
		headers["Authorization"] = "Bearer " + config.APIKey
	}

	return postJSON(ctx, config.GatewayURL, headers, smsPayload{To: config.To, Message: message})
}

func (s *SMSSender) SendAlert(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel, fmt.Sprintf("Lookout: %s is DOWN (%s). %s", monitor.Name, nctx.Region, nctx.Message))
}

func (s *SMSSender) SendRecovery(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel, fmt.Sprintf("Lookout: %s has RECOVERED (%s).", monitor.Name, nctx.Region))
}

func (s *SMSSender) SendDegraded(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel, fmt.Sprintf("Lookout: %s is DEGRADED (%s, %d ms).", monitor.Name, nctx.Region, nctx.LatencyMs))
}
