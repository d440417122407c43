package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockroom/api/responses"
	"github.com/angelmondragon/stockroom/api/validators"
	"github.com/angelmondragon/stockroom/internal/automation"
	"github.com/angelmondragon/stockroom/internal/inventory"
	"github.com/angelmondragon/stockroom/internal/profiles"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

const (
	maxThreshold      = 1_000_000
	maxContentLength  = 4096
	maxItemsPerInsert = 5000
)

func productIDParam(r *http.Request) (string, error) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return productID, nil
}

// InventoryLowStock lists products whose available count is under the threshold.
func InventoryLowStock(svc inventory.Service, defaultThreshold int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threshold, err := validators.ParseQueryInt(r, "threshold", defaultThreshold, 0, maxThreshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.GetLowStockProducts(r.Context(), threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"threshold": threshold, "products": products})
	}
}

func InventoryStats(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.GetStats(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventory.NewStatsView(stats))
	}
}

func InventoryRestockCheck(svc inventory.Service, defaultThreshold int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		threshold, err := validators.ParseQueryInt(r, "threshold", defaultThreshold, 0, maxThreshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		check, err := svc.CheckRestockNeeded(r.Context(), productID, threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, check)
	}
}

func InventoryAvailable(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.GetAvailableItems(r.Context(), productID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"productId": productID, "items": inventory.NewItemViews(items)})
	}
}

type addItemsRequest struct {
	Contents []string `json:"contents" validate:"required,min=1"`
	Source   string   `json:"source"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	BatchKey string   `json:"batchKey"`
}

// InventoryAddItems appends manually supplied items to a product.
func InventoryAddItems(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addItemsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contents := validators.SanitizeStrings(body.Contents, maxContentLength)
		if len(contents) > maxItemsPerInsert {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many items").
				WithDetails(map[string]any{"max": maxItemsPerInsert}))
			return
		}
		source := validators.SanitizeString(body.Source, 64)
		if source == "" {
			source = "manual"
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProductID(ctx, productID)
		}
		res, err := svc.AddItems(ctx, inventory.AddItemsInput{
			ProductID: productID,
			Contents:  contents,
			Source:    source,
			Category:  validators.SanitizeString(body.Category, 64),
			Tags:      validators.SanitizeStrings(body.Tags, 64),
			BatchKey:  validators.SanitizeString(body.BatchKey, 255),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusCreated
		if res.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, res)
	}
}

type requestInventoryRequest struct {
	ConfigID    string   `json:"configId"`
	TargetCount int      `json:"targetCount" validate:"gte=0"`
	SourcePath  string   `json:"sourcePath"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// InventoryRequest launches a collection job. The product profile supplies the
// config id when the body omits it.
func InventoryRequest(svc automation.Service, profileSvc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body requestInventoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := automation.CollectionInput{
			ProductID:   productID,
			ConfigID:    strings.TrimSpace(body.ConfigID),
			SourcePath:  strings.TrimSpace(body.SourcePath),
			TargetCount: body.TargetCount,
			Category:    validators.SanitizeString(body.Category, 64),
			Tags:        validators.SanitizeStrings(body.Tags, 64),
		}
		if input.ConfigID == "" {
			profile, err := profileSvc.Get(r.Context(), productID)
			if err != nil || !profile.CanCollect() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "configId is required when no active collection profile exists"))
				return
			}
			input.ConfigID = profile.CollectionConfigID
			if input.SourcePath == "" {
				input.SourcePath = profile.SourcePath
			}
		}

		launch, err := svc.RequestInventory(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, launch)
	}
}
