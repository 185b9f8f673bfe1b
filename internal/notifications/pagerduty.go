package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lookout-dev/lookout/internal/models"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

type PagerDutyConfig struct {
	RoutingKey string `json:"routing_key"`
}

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"` // "trigger" or "resolve"
	DedupKey    string           `json:"dedup_key"`
	Payload     pagerDutyPayload `json:"payload"`
}

type pagerDutyPayload struct {
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	Severity string `json:"severity"`
}

// PagerDutySender triggers and resolves PagerDuty events. The occurrence id
// doubles as the dedup key so that alert and recovery pair up on their side.
type PagerDutySender struct{}

func (s *PagerDutySender) send(ctx context.Context, channel models.NotificationChannel, action, summary, severity string, nctx Context) error {
	var config PagerDutyConfig

	if err := json.Unmarshal(channel.Config, &config); err != nil {
		return fmt.Errorf("invalid pagerduty channel config: %w", err)
	}

	if config.RoutingKey == "" {
		return fmt.Errorf("pagerduty channel %d has no routing_key configured", channel.ID)
	}

	return postJSON(ctx, pagerDutyEventsURL, nil, pagerDutyEvent{
		RoutingKey:  config.RoutingKey,
		EventAction: action,
		DedupKey:    nctx.OccurrenceID,
		Payload: pagerDutyPayload{
			Summary:  summary,
			Source:   nctx.Region,
			Severity: severity,
		},
	})
}

func (s *PagerDutySender) SendAlert(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel, "trigger",
		fmt.Sprintf("%s is down: %s", monitor.Name, nctx.Message), "critical", nctx)
}

func (s *PagerDutySender) SendRecovery(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel, "resolve",
		fmt.Sprintf("%s has recovered", monitor.Name), "info", nctx)
}

func (s *PagerDutySender) SendDegraded(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel, "trigger",
		fmt.Sprintf("%s is degraded (%d ms)", monitor.Name, nctx.LatencyMs), "warning", nctx)
}
