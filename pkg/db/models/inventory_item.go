package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/angelmondragon/stockroom/pkg/enums"
)

// InventoryItem is one sellable unit of a product. Rows are never deleted;
// the autoincrement id doubles as the FIFO allocation order.
type InventoryItem struct {
	ID              uint64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID       string           `gorm:"column:product_id;not null"`
	Content         string           `gorm:"column:content;not null"`
	Status          enums.ItemStatus `gorm:"column:status;not null;default:available"`
	OrderID         *string          `gorm:"column:order_id"`
	ValidityChecked bool             `gorm:"column:validity_checked;not null;default:false"`
	ValidityScore   *float64         `gorm:"column:validity_score"`
	ValidationDate  *time.Time       `gorm:"column:validation_date"`
	Source          string           `gorm:"column:source;not null;default:''"`
	Category        string           `gorm:"column:category;not null;default:''"`
	Tags            pq.StringArray   `gorm:"column:tags;type:text[]"`
	BatchKey        *string          `gorm:"column:batch_key"`
	AddedDate       time.Time        `gorm:"column:added_date;autoCreateTime"`
	UpdatedDate     time.Time        `gorm:"column:updated_date;autoUpdateTime"`
}

func (InventoryItem) TableName() string {
	return "inventory"
}
