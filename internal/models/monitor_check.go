package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MonitorCheck struct {
	gorm.Model

	MonitorID  uint   `gorm:"not null;index"`
	Region     string `gorm:"not null"`
	Status     string `gorm:"not null"`
	StatusCode int
	LatencyMs  int `gorm:"not null"`
	Message    string
	Timings    datatypes.JSON `gorm:"type:jsonb"` // Phase timings: dns, connect, tls, ttfb, transfer
	CheckedAt  time.Time      `gorm:"not null"`

	// Relationships
	Monitor Monitor `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
