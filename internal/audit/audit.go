package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Target identifies one entity an audited action touched.
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "monitor", "incident", "notification_channel"
}

// Entry is one structured audit record. The core only writes these; nothing
// in the engine ever reads them back.
type Entry struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	Targets   []Target               `json:"targets"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink receives audit entries. Implementations are fire-and-forget from the
// engine's perspective; a failed publish must not fail the transition that
// produced it.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}

// NewEntry stamps an id and timestamp onto a record.
func NewEntry(action string, targets []Target, metadata map[string]interface{}) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Action:    action,
		Targets:   targets,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}

// NATSSink publishes audit entries as JSON messages on a NATS subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewNATSSink(conn *nats.Conn, subject string, logger *zap.Logger) *NATSSink {
	return &NATSSink{conn: conn, subject: subject, logger: logger}
}

func (s *NATSSink) Publish(_ context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)

	if err != nil {
		return err
	}

	if err := s.conn.Publish(s.subject, payload); err != nil {
		s.logger.Warn("failed to publish audit entry",
			zap.String("action", entry.Action),
			zap.Error(err))
		return err
	}

	return nil
}

// NopSink drops every entry. Used in tests and NATS-less deployments.
type NopSink struct{}

func (NopSink) Publish(context.Context, Entry) error {
	return nil
}
