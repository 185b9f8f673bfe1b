package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationTrigger is the durable dedup record behind at-most-once
// delivery. Inserting it is the concurrency guard: the composite unique index
// makes the second writer's insert a no-op, and that writer skips the send.
// OccurrenceID is the incident id for alert/recovery kinds and the probe-tick
// timestamp for degraded, which never has an incident.
type NotificationTrigger struct {
	gorm.Model

	MonitorID    uint   `gorm:"not null;uniqueIndex:idx_trigger_occurrence"`
	OccurrenceID string `gorm:"not null;uniqueIndex:idx_trigger_occurrence"`
	ChannelID    uint   `gorm:"not null;uniqueIndex:idx_trigger_occurrence"`
	Kind         string `gorm:"not null;uniqueIndex:idx_trigger_occurrence"`
	ExpiresAt    time.Time

	// Relationships
	Monitor Monitor             `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	Channel NotificationChannel `gorm:"foreignKey:ChannelID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
