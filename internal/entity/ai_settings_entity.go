package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AISettings is the single-row table guarding AI consumption. The cursor
// LastProcessedMessageId only moves forward through a compare-and-swap,
// except for an explicit rollback after a failed send.
type AISettings struct {
	Id                     int64 `gorm:"primaryKey"`
	Enabled                bool
	LastProcessedMessageId int64
	CatalogBasePath        string         `gorm:"size:255"`
	CatalogStats           datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt              time.Time
}

func (AISettings) TableName() string {
	return "ia_settings"
}
