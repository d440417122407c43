package inventory

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/enums"
)

// ValidScoreThreshold splits checked items into valid and invalid.
const ValidScoreThreshold = 0.8

// AddItemsInput describes a bulk insert of fresh available items.
type AddItemsInput struct {
	ProductID string
	Contents  []string
	Source    string
	Category  string
	Tags      []string
	// BatchKey makes the insert idempotent: a second call with the same key
	// adds nothing and reports Duplicate.
	BatchKey string
}

// AddItemsResult reports how many rows an AddItems call created.
type AddItemsResult struct {
	Added     int  `json:"added"`
	Duplicate bool `json:"duplicate"`
}

// ValidityCheckInput records a single validation outcome for an item.
type ValidityCheckInput struct {
	ItemID          uint64
	Result          enums.ValidityResult
	Score           float64
	Method          string
	Details         json.RawMessage
	ExecutionTimeMs int64
}

// LowStockProduct is a product whose available count fell under a threshold.
type LowStockProduct struct {
	ProductID      string `json:"productId"`
	AvailableItems int64  `json:"availableItems"`
	TotalItems     int64  `json:"totalItems"`
}

// RestockCheck answers whether one product needs more items.
type RestockCheck struct {
	ProductID      string `json:"productId"`
	AvailableItems int64  `json:"availableItems"`
	Threshold      int    `json:"threshold"`
	NeedsRestock   bool   `json:"needsRestock"`
}

// ItemView is the API representation of an inventory item.
type ItemView struct {
	ID              uint64     `json:"id"`
	ProductID       string     `json:"productId"`
	Content         string     `json:"content"`
	Status          string     `json:"status"`
	OrderID         *string    `json:"orderId,omitempty"`
	ValidityChecked bool       `json:"validityChecked"`
	ValidityScore   *float64   `json:"validityScore,omitempty"`
	ValidationDate  *time.Time `json:"validationDate,omitempty"`
	Source          string     `json:"source"`
	Category        string     `json:"category"`
	Tags            []string   `json:"tags"`
	AddedDate       time.Time  `json:"addedDate"`
}

// StatsView is the API representation of a product's counters.
type StatsView struct {
	ProductID      string    `json:"productId"`
	TotalItems     int64     `json:"totalItems"`
	AvailableItems int64     `json:"availableItems"`
	ReservedItems  int64     `json:"reservedItems"`
	SoldItems      int64     `json:"soldItems"`
	ValidItems     int64     `json:"validItems"`
	InvalidItems   int64     `json:"invalidItems"`
	UncheckedItems int64     `json:"uncheckedItems"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// NewItemView maps a model row to its API shape.
func NewItemView(item models.InventoryItem) ItemView {
	tags := []string(item.Tags)
	if tags == nil {
		tags = []string{}
	}
	return ItemView{
		ID:              item.ID,
		ProductID:       item.ProductID,
		Content:         item.Content,
		Status:          item.Status.String(),
		OrderID:         item.OrderID,
		ValidityChecked: item.ValidityChecked,
		ValidityScore:   item.ValidityScore,
		ValidationDate:  item.ValidationDate,
		Source:          item.Source,
		Category:        item.Category,
		Tags:            tags,
		AddedDate:       item.AddedDate,
	}
}

// NewItemViews maps a slice of rows.
func NewItemViews(items []models.InventoryItem) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, NewItemView(item))
	}
	return views
}

// NewStatsView maps a stats row to its API shape.
func NewStatsView(stats models.InventoryStats) StatsView {
	return StatsView{
		ProductID:      stats.ProductID,
		TotalItems:     stats.TotalItems,
		AvailableItems: stats.AvailableItems,
		ReservedItems:  stats.ReservedItems,
		SoldItems:      stats.SoldItems,
		ValidItems:     stats.ValidItems,
		InvalidItems:   stats.InvalidItems,
		UncheckedItems: stats.UncheckedItems,
		LastUpdated:    stats.LastUpdated,
	}
}
