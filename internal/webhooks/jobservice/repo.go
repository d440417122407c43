package jobservicewebhook

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom/pkg/db/models"
)

// Repository persists the webhook event log.
type Repository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	FindByExternalID(ctx context.Context, externalID string) (*models.WebhookEvent, error)
	FindByID(ctx context.Context, id uint64) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint64, result datatypes.JSON, at time.Time) error
	RecordAttempt(ctx context.Context, id uint64, lastError string) error
	ListUnprocessed(ctx context.Context, limit int) ([]models.WebhookEvent, error)
	List(ctx context.Context, processed *bool, beforeID uint64, limit int) ([]models.WebhookEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a webhook event repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindByID(ctx context.Context, id uint64) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id uint64, result datatypes.JSON, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed":         true,
			"processing_result": result,
			"processed_at":      at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) RecordAttempt(ctx context.Context, id uint64, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
		}).Error
}

func (r *repository) ListUnprocessed(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) List(ctx context.Context, processed *bool, beforeID uint64, limit int) ([]models.WebhookEvent, error) {
	query := r.db.WithContext(ctx).Model(&models.WebhookEvent{})
	if processed != nil {
		query = query.Where("processed = ?", *processed)
	}
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	var events []models.WebhookEvent
	if err := query.Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
