package notifications

import (
	"context"
	"time"

	"github.com/lookout-dev/lookout/internal/models"
)

// Notification kinds. Alert and recovery carry an incident id as their
// occurrence; degraded has no incident and uses the probe-tick timestamp.
const (
	KindAlert    = "alert"
	KindRecovery = "recovery"
	KindDegraded = "degraded"
)

// Context is the probe-side detail attached to a notification.
type Context struct {
	OccurrenceID  string
	Region        string
	StatusCode    int
	Message       string
	LatencyMs     int64
	CronTimestamp int64
	StartedAt     *time.Time
	ResolvedAt    *time.Time
}

// Sender delivers notifications for one provider kind. Implementations parse
// their own channel configuration out of the channel's JSONB config.
type Sender interface {
	SendAlert(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error
	SendRecovery(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error
	SendDegraded(ctx context.Context, monitor models.Monitor, channel models.NotificationChannel, nctx Context) error
}

// Registry maps provider identifiers to senders. New providers register here;
// dispatch logic never switches on provider strings.
type Registry struct {
	senders map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

func (r *Registry) Register(kind string, sender Sender) {
	r.senders[kind] = sender
}

func (r *Registry) Lookup(kind string) (Sender, bool) {
	sender, ok := r.senders[kind]
	return sender, ok
}

// NewDefaultRegistry wires every built-in provider.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("webhook", &WebhookSender{})
	r.Register("slack", &SlackSender{})
	r.Register("discord", &DiscordSender{})
	r.Register("email", &EmailSender{})
	r.Register("sms", &SMSSender{})
	r.Register("pagerduty", &PagerDutySender{})
	return r
}
