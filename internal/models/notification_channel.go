package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationChannel struct {
	gorm.Model

	WorkspaceID uint           `gorm:"not null;index"`
	Name        string         `gorm:"not null"`
	Kind        string         `gorm:"not null"` // "webhook", "slack", "discord", "email", "sms", "pagerduty"
	Config      datatypes.JSON `gorm:"type:jsonb"`

	// Relationships
	Workspace Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Monitors  []Monitor `gorm:"many2many:monitor_channels;"`
}
