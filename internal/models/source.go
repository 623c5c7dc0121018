package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SourceStatusPending  = "pending"
	SourceStatusActive   = "active"
	SourceStatusInactive = "inactive"
	SourceStatusFailed   = "failed"
)

// Source is the local record of a data source. ExternalSourceID loosely
// references the ELT platform's own record; there is no foreign key.
type Source struct {
	SourceID                string         `gorm:"column:source_id;type:varchar(36);primaryKey" json:"sourceId"`
	Name                    string         `gorm:"type:varchar(255);not null" json:"name"`
	SourceType              string         `gorm:"type:varchar(50);not null;index" json:"sourceType"`
	Status                  string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	ConnectionConfiguration datatypes.JSON `gorm:"type:jsonb" json:"connectionConfiguration" swaggertype:"object"`
	ExternalSourceID        *string        `gorm:"type:varchar(64);index" json:"externalSourceId"`
	ExternalConnectionID    *string        `gorm:"type:varchar(64);index" json:"externalConnectionId"`
	CreatedAt               time.Time      `gorm:"type:timestamptz;autoCreateTime;index" json:"createdAt"`
	UpdatedAt               time.Time      `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
	LastSync                *time.Time     `gorm:"type:timestamptz" json:"lastSync"`
}

func (Source) TableName() string {
	return "sources"
}
