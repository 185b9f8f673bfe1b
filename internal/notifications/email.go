package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/lookout-dev/lookout/internal/models"
)

type EmailConfig struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

// EmailSender delivers plain-text mail over SMTP.
type EmailSender struct{}

func (s *EmailSender) send(_ context.Context, channel models.NotificationChannel, subject, body string) error {
	var config EmailConfig

	if err := json.Unmarshal(channel.Config, &config); err != nil {
		return fmt.Errorf("invalid email channel config: %w", err)
	}

	if config.Host == "" || len(config.To) == 0 {
		return fmt.Errorf("email channel %d is missing host or recipients", channel.ID)
	}

	message := strings.Join([]string{
		"From: " + config.From,
		"To: " + strings.Join(config.To, ", "),
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	var auth smtp.Auth

	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	if err := smtp.SendMail(addr, auth, config.From, config.To, []byte(message)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	return nil
}

func emailBody(monitor models.Monitor, nctx Context, summary string) string {
	lines := []string{
		summary,
		"",
		"Monitor: " + monitor.Name,
		"Type: " + monitor.JobKind,
		"Region: " + nctx.Region,
	}

	if nctx.StatusCode != 0 {
		lines = append(lines, fmt.Sprintf("Status code: %d", nctx.StatusCode))
	}

	if nctx.LatencyMs > 0 {
		lines = append(lines, fmt.Sprintf("Latency: %d ms", nctx.LatencyMs))
	}

	if nctx.Message != "" {
		lines = append(lines, "Details: "+nctx.Message)
	}

	return strings.Join(lines, "\n")
}

func (s *EmailSender) SendAlert(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel,
		fmt.Sprintf("[Lookout] %s is down", monitor.Name),
		emailBody(monitor, nctx, monitor.Name+" has encountered an issue and requires attention."))
}

func (s *EmailSender) SendRecovery(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel,
		fmt.Sprintf("[Lookout] %s has recovered", monitor.Name),
		emailBody(monitor, nctx, monitor.Name+" is back to normal operation."))
}

func (s *EmailSender) SendDegraded(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error {
	return s.send(ctx, channel,
		fmt.Sprintf("[Lookout] %s is degraded", monitor.Name),
		emailBody(monitor, nctx, monitor.Name+" is responding slower than its configured threshold."))
}
