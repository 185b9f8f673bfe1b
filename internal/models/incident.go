package models

import (
	"time"

	"gorm.io/gorm"
)

type Incident struct {
	gorm.Model

	// The partial unique index enforces at most one unresolved incident per
	// monitor even under concurrent region callbacks.
	MonitorID      uint `gorm:"not null;index;uniqueIndex:idx_open_incident,where:resolved_at IS NULL"`
	WorkspaceID    uint `gorm:"not null;index"`
	StartedAt      time.Time
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
	AutoResolved   bool `gorm:"default:false"`

	// Relationships
	Monitor Monitor `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
