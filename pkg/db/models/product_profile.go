package models

import "time"

// ProductProfile holds the automation settings for one product: which job
// configurations harvest and validate its items.
type ProductProfile struct {
	ProductID          string    `gorm:"column:product_id;primaryKey"`
	CollectionConfigID *string   `gorm:"column:collection_config_id"`
	ValidationConfigID *string   `gorm:"column:validation_config_id"`
	SourcePath         string    `gorm:"column:source_path;not null;default:''"`
	RestockBaseline    *int      `gorm:"column:restock_baseline"`
	Active             bool      `gorm:"column:active;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
