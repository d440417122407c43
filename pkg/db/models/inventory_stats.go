package models

import "time"

// InventoryStats is the per-product aggregate recomputed inside every
// ledger mutation.
type InventoryStats struct {
	ProductID      string    `gorm:"column:product_id;primaryKey"`
	TotalItems     int64     `gorm:"column:total_items;not null;default:0"`
	AvailableItems int64     `gorm:"column:available_items;not null;default:0"`
	ReservedItems  int64     `gorm:"column:reserved_items;not null;default:0"`
	SoldItems      int64     `gorm:"column:sold_items;not null;default:0"`
	ValidItems     int64     `gorm:"column:valid_items;not null;default:0"`
	InvalidItems   int64     `gorm:"column:invalid_items;not null;default:0"`
	UncheckedItems int64     `gorm:"column:unchecked_items;not null;default:0"`
	LastUpdated    time.Time `gorm:"column:last_updated"`
}
