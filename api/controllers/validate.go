package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockroom/api/responses"
	"github.com/angelmondragon/stockroom/api/validators"
	"github.com/angelmondragon/stockroom/internal/automation"
	"github.com/angelmondragon/stockroom/internal/inventory"
	"github.com/angelmondragon/stockroom/internal/profiles"
	"github.com/angelmondragon/stockroom/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

type validityCheckRequest struct {
	Result          string          `json:"result" validate:"required,oneof=valid invalid error"`
	Score           *float64        `json:"score" validate:"required,gte=0,lte=1"`
	Method          string          `json:"method"`
	Details         json.RawMessage `json:"details"`
	ExecutionTimeMs int64           `json:"executionTimeMs" validate:"gte=0"`
}

// ItemValidityCheck records one validation outcome for an item.
func ItemValidityCheck(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := strconv.ParseUint(strings.TrimSpace(chi.URLParam(r, "itemId")), 10, 64)
		if err != nil || itemID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "itemId must be a positive integer"))
			return
		}
		var body validityCheckRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := enums.ParseValidityResult(body.Result)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid result"))
			return
		}

		input := inventory.ValidityCheckInput{
			ItemID:          itemID,
			Result:          result,
			Score:           *body.Score,
			Method:          validators.SanitizeString(body.Method, 64),
			ExecutionTimeMs: body.ExecutionTimeMs,
		}
		if input.Method == "" {
			input.Method = "manual"
		}
		if len(body.Details) > 0 && string(body.Details) != "null" {
			input.Details = body.Details
		}

		if err := svc.AddValidityCheck(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"itemId": itemID, "result": result})
	}
}

type validateProductRequest struct {
	ConfigID   string `json:"configId"`
	SourcePath string `json:"sourcePath"`
}

// ValidateProduct launches a validation job over the product's unchecked items.
func ValidateProduct(svc automation.Service, profileSvc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body validateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := automation.ValidationInput{
			ProductID:  productID,
			ConfigID:   strings.TrimSpace(body.ConfigID),
			SourcePath: strings.TrimSpace(body.SourcePath),
		}
		if input.ConfigID == "" {
			profile, err := profileSvc.Get(r.Context(), productID)
			if err != nil || !profile.CanValidate() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "configId is required when no active validation profile exists"))
				return
			}
			input.ConfigID = profile.ValidationConfigID
			if input.SourcePath == "" {
				input.SourcePath = profile.SourcePath
			}
		}

		launch, err := svc.ValidateItems(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusAccepted
		if !launch.Launched {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, launch)
	}
}
