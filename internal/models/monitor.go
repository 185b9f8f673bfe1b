package models

import (
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Monitor statuses. A monitor-level status only changes once a cross-region
// quorum confirms it; single-region blips never flip it.
const (
	MonitorStatusActive   = "active"
	MonitorStatusDegraded = "degraded"
	MonitorStatusError    = "error"
)

type Monitor struct {
	gorm.Model

	WorkspaceID     uint           `gorm:"not null;index"`
	Name            string         `gorm:"not null"`
	JobKind         string         `gorm:"not null"` // "http", "tcp", "dns", "database"
	Status          string         `gorm:"not null;default:active"`
	Paused          bool           `gorm:"default:false"`
	Interval        int            `gorm:"not null"` // Seconds between probe ticks per region
	Regions         pq.StringArray `gorm:"type:text[];not null"`
	DegradedAfterMs int            // Latency threshold for the degraded tier; 0 disables it
	Config          datatypes.JSON `gorm:"type:jsonb"` // Job-kind specific probe configuration
	Assertions      datatypes.JSON `gorm:"type:jsonb"` // Declarative response assertions

	// Relationships
	Workspace      Workspace             `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	RegionStatuses []RegionStatus        `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	MonitorChecks  []MonitorCheck        `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Incidents      []Incident            `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Channels       []NotificationChannel `gorm:"many2many:monitor_channels;"`
}
