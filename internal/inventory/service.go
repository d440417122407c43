package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
)

const (
	defaultAvailableLimit = 50
	maxAvailableLimit     = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
	now  func() time.Time
}

// ServiceParams groups the ledger dependencies.
type ServiceParams struct {
	Repo Repository
	Tx   txRunner
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// NewService builds the item ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: params.Repo, tx: params.Tx, now: clock}, nil
}

func (s *service) AddItems(ctx context.Context, input AddItemsInput) (AddItemsResult, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return AddItemsResult{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if len(input.Contents) == 0 {
		return AddItemsResult{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one item content required")
	}
	for i, content := range input.Contents {
		if strings.TrimSpace(content) == "" {
			return AddItemsResult{}, pkgerrors.New(pkgerrors.CodeValidation, "item content must not be empty").
				WithDetails(map[string]any{"index": i})
		}
	}

	now := s.now().UTC()
	tags := pq.StringArray(input.Tags)
	if tags == nil {
		tags = pq.StringArray{}
	}
	var batchKey *string
	if key := strings.TrimSpace(input.BatchKey); key != "" {
		batchKey = &key
	}

	items := make([]models.InventoryItem, 0, len(input.Contents))
	for _, content := range input.Contents {
		items = append(items, models.InventoryItem{
			ProductID:   productID,
			Content:     content,
			Status:      enums.ItemStatusAvailable,
			Source:      input.Source,
			Category:    input.Category,
			Tags:        tags,
			BatchKey:    batchKey,
			AddedDate:   now,
			UpdatedDate: now,
		})
	}

	var result AddItemsResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockProducts(ctx, []string{productID}, now); err != nil {
			return storageError(err, "lock product stats")
		}

		if batchKey != nil {
			inserted, err := repo.InsertBatch(ctx, &models.IngestedBatch{
				BatchKey:   *batchKey,
				ProductID:  productID,
				ItemsAdded: len(items),
				CreatedAt:  now,
			})
			if err != nil {
				return storageError(err, "record ingested batch")
			}
			if !inserted {
				result.Duplicate = true
				return nil
			}
		}

		if err := repo.InsertItems(ctx, items); err != nil {
			return storageError(err, "insert items")
		}
		if _, err := repo.RecomputeStats(ctx, productID, now); err != nil {
			return storageError(err, "recompute stats")
		}
		result.Added = len(items)
		return nil
	})
	if err != nil {
		return AddItemsResult{}, err
	}
	return result, nil
}

func (s *service) ReserveItems(ctx context.Context, productID, orderID string, quantity int) ([]models.InventoryItem, error) {
	productID = strings.TrimSpace(productID)
	orderID = strings.TrimSpace(orderID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	now := s.now().UTC()
	var reserved []models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockProducts(ctx, []string{productID}, now); err != nil {
			return storageError(err, "lock product stats")
		}

		items, err := repo.FindAvailableForUpdate(ctx, productID, quantity)
		if err != nil {
			return storageError(err, "select available items")
		}
		if len(items) < quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough available items").
				WithDetails(map[string]any{
					"productId": productID,
					"requested": quantity,
					"available": len(items),
				})
		}

		ids := itemIDs(items)
		if err := repo.UpdateItems(ctx, ids, map[string]any{
			"status":       enums.ItemStatusReserved,
			"order_id":     orderID,
			"updated_date": now,
		}); err != nil {
			return storageError(err, "reserve items")
		}
		if _, err := repo.RecomputeStats(ctx, productID, now); err != nil {
			return storageError(err, "recompute stats")
		}

		for i := range items {
			items[i].Status = enums.ItemStatusReserved
			items[i].OrderID = &orderID
			items[i].UpdatedDate = now
		}
		reserved = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

func (s *service) CompleteOrder(ctx context.Context, orderID string) (int, error) {
	return s.settleOrder(ctx, orderID, enums.ItemStatusSold)
}

func (s *service) CancelOrder(ctx context.Context, orderID string) (int, error) {
	return s.settleOrder(ctx, orderID, enums.ItemStatusAvailable)
}

// settleOrder moves every item reserved under orderID to target, which is
// sold on completion and available on cancellation.
func (s *service) settleOrder(ctx context.Context, orderID string, target enums.ItemStatus) (int, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !enums.ItemStatusReserved.CanTransitionTo(target) {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("reserved items cannot move to %s", target))
	}

	now := s.now().UTC()
	var settled int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		productIDs, err := repo.ProductIDsForOrder(ctx, orderID, enums.ItemStatusReserved)
		if err != nil {
			return storageError(err, "load order products")
		}
		if len(productIDs) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no reserved items for order")
		}
		if err := repo.LockProducts(ctx, productIDs, now); err != nil {
			return storageError(err, "lock product stats")
		}

		items, err := repo.FindByOrderForUpdate(ctx, orderID, enums.ItemStatusReserved)
		if err != nil {
			return storageError(err, "select reserved items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no reserved items for order")
		}

		updates := map[string]any{"status": target, "updated_date": now}
		if target == enums.ItemStatusAvailable {
			updates["order_id"] = nil
		}
		if err := repo.UpdateItems(ctx, itemIDs(items), updates); err != nil {
			return storageError(err, "update order items")
		}

		for _, productID := range distinctProducts(items) {
			if _, err := repo.RecomputeStats(ctx, productID, now); err != nil {
				return storageError(err, "recompute stats")
			}
		}
		settled = len(items)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return settled, nil
}

func (s *service) AddValidityCheck(ctx context.Context, input ValidityCheckInput) error {
	if input.ItemID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if !input.Result.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown validity result").
			WithDetails(map[string]any{"result": input.Result})
	}
	if input.Score < 0 || input.Score > 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "score must be within [0,1]").
			WithDetails(map[string]any{"score": input.Score})
	}
	if input.ExecutionTimeMs < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "execution time must not be negative")
	}

	now := s.now().UTC()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.FindItem(ctx, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
					WithDetails(map[string]any{"itemId": input.ItemID})
			}
			return storageError(err, "load item")
		}
		if err := repo.LockProducts(ctx, []string{item.ProductID}, now); err != nil {
			return storageError(err, "lock product stats")
		}

		check := &models.ValidityCheck{
			ItemID:          item.ID,
			CheckDate:       now,
			Result:          input.Result,
			Score:           input.Score,
			Method:          input.Method,
			ExecutionTimeMs: input.ExecutionTimeMs,
		}
		if len(input.Details) > 0 {
			check.Details = datatypes.JSON(input.Details)
		}
		if err := repo.InsertValidityCheck(ctx, check); err != nil {
			return storageError(err, "insert validity check")
		}

		if err := repo.UpdateItems(ctx, []uint64{item.ID}, map[string]any{
			"validity_checked": true,
			"validity_score":   input.Score,
			"validation_date":  now,
			"updated_date":     now,
		}); err != nil {
			return storageError(err, "mark item checked")
		}
		if _, err := repo.RecomputeStats(ctx, item.ProductID, now); err != nil {
			return storageError(err, "recompute stats")
		}
		return nil
	})
}

func (s *service) GetStats(ctx context.Context, productID string) (models.InventoryStats, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return models.InventoryStats{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	stats, err := s.repo.FindStats(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.InventoryStats{ProductID: productID}, nil
		}
		return models.InventoryStats{}, storageError(err, "load stats")
	}
	return *stats, nil
}

func (s *service) GetLowStockProducts(ctx context.Context, threshold int) ([]LowStockProduct, error) {
	if threshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold must not be negative")
	}
	rows, err := s.repo.ListLowStock(ctx, threshold)
	if err != nil {
		return nil, storageError(err, "list low stock")
	}
	products := make([]LowStockProduct, 0, len(rows))
	for _, row := range rows {
		products = append(products, LowStockProduct{
			ProductID:      row.ProductID,
			AvailableItems: row.AvailableItems,
			TotalItems:     row.TotalItems,
		})
	}
	return products, nil
}

func (s *service) GetAvailableItems(ctx context.Context, productID string, limit int) ([]models.InventoryItem, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if limit <= 0 {
		limit = defaultAvailableLimit
	}
	if limit > maxAvailableLimit {
		limit = maxAvailableLimit
	}
	items, err := s.repo.ListAvailable(ctx, productID, limit)
	if err != nil {
		return nil, storageError(err, "list available items")
	}
	return items, nil
}

func (s *service) CheckRestockNeeded(ctx context.Context, productID string, threshold int) (RestockCheck, error) {
	if threshold < 0 {
		return RestockCheck{}, pkgerrors.New(pkgerrors.CodeValidation, "threshold must not be negative")
	}
	stats, err := s.GetStats(ctx, productID)
	if err != nil {
		return RestockCheck{}, err
	}
	return RestockCheck{
		ProductID:      stats.ProductID,
		AvailableItems: stats.AvailableItems,
		Threshold:      threshold,
		NeedsRestock:   stats.AvailableItems < int64(threshold),
	}, nil
}

func storageError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, msg)
}

func itemIDs(items []models.InventoryItem) []uint64 {
	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func distinctProducts(items []models.InventoryItem) []string {
	seen := make(map[string]struct{}, len(items))
	products := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		products = append(products, item.ProductID)
	}
	return products
}
