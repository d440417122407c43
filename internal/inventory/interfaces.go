package inventory

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/enums"
)

// Repository defines persistence operations for the item ledger tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockProducts(ctx context.Context, productIDs []string, now time.Time) error
	InsertItems(ctx context.Context, items []models.InventoryItem) error
	InsertBatch(ctx context.Context, batch *models.IngestedBatch) (bool, error)
	FindAvailableForUpdate(ctx context.Context, productID string, limit int) ([]models.InventoryItem, error)
	ListAvailable(ctx context.Context, productID string, limit int) ([]models.InventoryItem, error)
	ProductIDsForOrder(ctx context.Context, orderID string, status enums.ItemStatus) ([]string, error)
	FindByOrderForUpdate(ctx context.Context, orderID string, status enums.ItemStatus) ([]models.InventoryItem, error)
	UpdateItems(ctx context.Context, ids []uint64, updates map[string]any) error
	FindItem(ctx context.Context, id uint64) (*models.InventoryItem, error)
	InsertValidityCheck(ctx context.Context, check *models.ValidityCheck) error
	RecomputeStats(ctx context.Context, productID string, now time.Time) (*models.InventoryStats, error)
	FindStats(ctx context.Context, productID string) (*models.InventoryStats, error)
	ListLowStock(ctx context.Context, threshold int) ([]models.InventoryStats, error)
}

// Service is the item ledger. Every mutation commits its item changes and the
// recomputed product stats in a single transaction.
type Service interface {
	AddItems(ctx context.Context, input AddItemsInput) (AddItemsResult, error)
	ReserveItems(ctx context.Context, productID, orderID string, quantity int) ([]models.InventoryItem, error)
	CompleteOrder(ctx context.Context, orderID string) (int, error)
	CancelOrder(ctx context.Context, orderID string) (int, error)
	AddValidityCheck(ctx context.Context, input ValidityCheckInput) error
	GetStats(ctx context.Context, productID string) (models.InventoryStats, error)
	GetLowStockProducts(ctx context.Context, threshold int) ([]LowStockProduct, error)
	GetAvailableItems(ctx context.Context, productID string, limit int) ([]models.InventoryItem, error)
	CheckRestockNeeded(ctx context.Context, productID string, threshold int) (RestockCheck, error)
}
