package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the durable log of every accepted job service callback.
type WebhookEvent struct {
	ID               uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	ExternalID       *string        `gorm:"column:external_id"`
	EventType        string         `gorm:"column:event_type;not null"`
	JobID            *string        `gorm:"column:job_id"`
	Payload          datatypes.JSON `gorm:"column:payload;not null"`
	Processed        bool           `gorm:"column:processed;not null;default:false"`
	ProcessingResult datatypes.JSON `gorm:"column:processing_result"`
	Attempts         int            `gorm:"column:attempts;not null;default:0"`
	LastError        *string        `gorm:"column:last_error"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt      *time.Time     `gorm:"column:processed_at"`
}
