package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
)

// UpsertInput carries the editable profile fields.
type UpsertInput struct {
	ProductID          string
	CollectionConfigID string
	ValidationConfigID string
	SourcePath         string
	RestockBaseline    int
	Active             bool
}

// Profile is the API and scheduler view of a product profile.
type Profile struct {
	ProductID          string `json:"productId"`
	CollectionConfigID string `json:"collectionConfigId,omitempty"`
	ValidationConfigID string `json:"validationConfigId,omitempty"`
	SourcePath         string `json:"sourcePath,omitempty"`
	RestockBaseline    int    `json:"restockBaseline,omitempty"`
	Active             bool   `json:"active"`
}

// CanCollect reports whether the profile can launch collection jobs.
func (p Profile) CanCollect() bool {
	return p.Active && p.CollectionConfigID != ""
}

// CanValidate reports whether the profile can launch validation jobs.
func (p Profile) CanValidate() bool {
	return p.Active && p.ValidationConfigID != ""
}

// Service manages product automation profiles.
type Service interface {
	Upsert(ctx context.Context, input UpsertInput) (Profile, error)
	Get(ctx context.Context, productID string) (Profile, error)
	ForProducts(ctx context.Context, productIDs []string) (map[string]Profile, error)
	ListActive(ctx context.Context) ([]Profile, error)
	List(ctx context.Context) ([]Profile, error)
}

type service struct {
	repo Repository
}

// NewService builds the profile service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (Profile, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.RestockBaseline < 0 {
		return Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "restock baseline must not be negative")
	}

	row := &models.ProductProfile{
		ProductID:          productID,
		CollectionConfigID: optional(input.CollectionConfigID),
		ValidationConfigID: optional(input.ValidationConfigID),
		SourcePath:         strings.TrimSpace(input.SourcePath),
		Active:             input.Active,
	}
	if input.RestockBaseline > 0 {
		baseline := input.RestockBaseline
		row.RestockBaseline = &baseline
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "upsert product profile")
	}
	return toProfile(*row), nil
}

func (s *service) Get(ctx context.Context, productID string) (Profile, error) {
	row, err := s.repo.Find(ctx, strings.TrimSpace(productID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "product profile not found")
		}
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load product profile")
	}
	return toProfile(*row), nil
}

func (s *service) ForProducts(ctx context.Context, productIDs []string) (map[string]Profile, error) {
	rows, err := s.repo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load product profiles")
	}
	out := make(map[string]Profile, len(rows))
	for _, row := range rows {
		out[row.ProductID] = toProfile(row)
	}
	return out, nil
}

func (s *service) ListActive(ctx context.Context) ([]Profile, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list active profiles")
	}
	return toProfiles(rows), nil
}

func (s *service) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list profiles")
	}
	return toProfiles(rows), nil
}

func toProfiles(rows []models.ProductProfile) []Profile {
	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, toProfile(row))
	}
	return out
}

func toProfile(row models.ProductProfile) Profile {
	p := Profile{
		ProductID:  row.ProductID,
		SourcePath: row.SourcePath,
		Active:     row.Active,
	}
	if row.CollectionConfigID != nil {
		p.CollectionConfigID = *row.CollectionConfigID
	}
	if row.ValidationConfigID != nil {
		p.ValidationConfigID = *row.ValidationConfigID
	}
	if row.RestockBaseline != nil {
		p.RestockBaseline = *row.RestockBaseline
	}
	return p
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
