package models

import "gorm.io/gorm"

type Workspace struct {
	gorm.Model

	Name        string `gorm:"not null"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Description string
	OwnerID     uint `gorm:"not null;index"`

	// Relationships
	Owner                User                  `gorm:"foreignKey:OwnerID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	WorkspaceMemberships []WorkspaceMembership `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Monitors             []Monitor             `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	NotificationChannels []NotificationChannel `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
