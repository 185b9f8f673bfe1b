package models

import (
	"time"
)

// RegionStatus is the latest health label reported by one probe region for one
// monitor. Exactly one row exists per (monitor, region) pair; every probe tick
// overwrites it (last write wins, no history).
type RegionStatus struct {
	ID        uint   `gorm:"primarykey"`
	MonitorID uint   `gorm:"not null;uniqueIndex:idx_monitor_region"`
	Region    string `gorm:"not null;uniqueIndex:idx_monitor_region"`
	Status    string `gorm:"not null"`
	UpdatedAt time.Time

	// Relationships
	Monitor Monitor `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
