package inventory

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/enums"
)

const insertBatchSize = 500

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockProducts makes sure each product has a stats row and row-locks it.
// Products are locked in ascending order so concurrent multi-product
// transactions cannot deadlock.
func (r *repository) LockProducts(ctx context.Context, productIDs []string, now time.Time) error {
	ids := append([]string(nil), productIDs...)
	sort.Strings(ids)

	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		seed := models.InventoryStats{ProductID: id, LastUpdated: now}
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "product_id"}}, DoNothing: true}).
			Create(&seed).Error; err != nil {
			return err
		}

		var locked models.InventoryStats
		if err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ?", id).
			Take(&locked).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) InsertItems(ctx context.Context, items []models.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&items, insertBatchSize).Error
}

// InsertBatch records a dedupe key. It returns false when the key already
// exists; the conflict is swallowed so the surrounding transaction stays usable.
func (r *repository) InsertBatch(ctx context.Context, batch *models.IngestedBatch) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "batch_key"}}, DoNothing: true}).
		Create(batch)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindAvailableForUpdate(ctx context.Context, productID string, limit int) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND status = ?", productID, enums.ItemStatusAvailable).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListAvailable(ctx context.Context, productID string, limit int) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, enums.ItemStatusAvailable).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ProductIDsForOrder(ctx context.Context, orderID string, status enums.ItemStatus) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Distinct("product_id").
		Where("order_id = ? AND status = ?", orderID, status).
		Order("product_id ASC").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) FindByOrderForUpdate(ctx context.Context, orderID string, status enums.ItemStatus) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateItems(ctx context.Context, ids []uint64, updates map[string]any) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id IN ?", ids).
		Updates(updates).Error
}

func (r *repository) FindItem(ctx context.Context, id uint64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) InsertValidityCheck(ctx context.Context, check *models.ValidityCheck) error {
	return r.db.WithContext(ctx).Create(check).Error
}

type statsAggregate struct {
	TotalItems     int64
	AvailableItems int64
	ReservedItems  int64
	SoldItems      int64
	ValidItems     int64
	InvalidItems   int64
	UncheckedItems int64
}

const statsAggregateSQL = `
SELECT
	COUNT(*) AS total_items,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS available_items,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS reserved_items,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS sold_items,
	COALESCE(SUM(CASE WHEN validity_checked = ? AND validity_score >= ? THEN 1 ELSE 0 END), 0) AS valid_items,
	COALESCE(SUM(CASE WHEN validity_checked = ? AND (validity_score IS NULL OR validity_score < ?) THEN 1 ELSE 0 END), 0) AS invalid_items,
	COALESCE(SUM(CASE WHEN validity_checked = ? THEN 0 ELSE 1 END), 0) AS unchecked_items
FROM inventory
WHERE product_id = ?`

// RecomputeStats derives the product counters from the item rows in one
// aggregate pass and upserts them.
func (r *repository) RecomputeStats(ctx context.Context, productID string, now time.Time) (*models.InventoryStats, error) {
	var agg statsAggregate
	err := r.db.WithContext(ctx).Raw(statsAggregateSQL,
		enums.ItemStatusAvailable,
		enums.ItemStatusReserved,
		enums.ItemStatusSold,
		true, ValidScoreThreshold,
		true, ValidScoreThreshold,
		true,
		productID,
	).Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	stats := models.InventoryStats{
		ProductID:      productID,
		TotalItems:     agg.TotalItems,
		AvailableItems: agg.AvailableItems,
		ReservedItems:  agg.ReservedItems,
		SoldItems:      agg.SoldItems,
		ValidItems:     agg.ValidItems,
		InvalidItems:   agg.InvalidItems,
		UncheckedItems: agg.UncheckedItems,
		LastUpdated:    now,
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_items", "available_items", "reserved_items", "sold_items",
				"valid_items", "invalid_items", "unchecked_items", "last_updated",
			}),
		}).
		Create(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *repository) FindStats(ctx context.Context, productID string) (*models.InventoryStats, error) {
	var stats models.InventoryStats
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Take(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *repository) ListLowStock(ctx context.Context, threshold int) ([]models.InventoryStats, error) {
	var rows []models.InventoryStats
	err := r.db.WithContext(ctx).
		Where("available_items < ?", threshold).
		Order("available_items ASC, product_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
