package profiles

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroom/pkg/db/models"
)

// Repository persists per-product automation profiles.
type Repository interface {
	Upsert(ctx context.Context, profile *models.ProductProfile) error
	Find(ctx context.Context, productID string) (*models.ProductProfile, error)
	FindMany(ctx context.Context, productIDs []string) ([]models.ProductProfile, error)
	ListActive(ctx context.Context) ([]models.ProductProfile, error)
	List(ctx context.Context) ([]models.ProductProfile, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a profile repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, profile *models.ProductProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"collection_config_id", "validation_config_id", "source_path",
				"restock_baseline", "active", "updated_at",
			}),
		}).
		Create(profile).Error
}

func (r *repository) Find(ctx context.Context, productID string) (*models.ProductProfile, error) {
	var profile models.ProductProfile
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Take(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindMany(ctx context.Context, productIDs []string) ([]models.ProductProfile, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var rows []models.ProductProfile
	err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("product_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.ProductProfile, error) {
	var rows []models.ProductProfile
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("product_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context) ([]models.ProductProfile, error) {
	var rows []models.ProductProfile
	if err := r.db.WithContext(ctx).Order("product_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
