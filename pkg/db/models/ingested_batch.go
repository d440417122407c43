package models

import "time"

// IngestedBatch remembers dedupe keys of item batches already added.
type IngestedBatch struct {
	BatchKey   string    `gorm:"column:batch_key;primaryKey"`
	ProductID  string    `gorm:"column:product_id;not null"`
	ItemsAdded int       `gorm:"column:items_added;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
