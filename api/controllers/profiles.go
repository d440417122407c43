package controllers

import (
	"net/http"

	"github.com/angelmondragon/stockroom/api/responses"
	"github.com/angelmondragon/stockroom/api/validators"
	"github.com/angelmondragon/stockroom/internal/profiles"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

func ProfilesList(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"profiles": list})
	}
}

func ProfileGet(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type upsertProfileRequest struct {
	CollectionConfigID string `json:"collectionConfigId" validate:"max=255"`
	ValidationConfigID string `json:"validationConfigId" validate:"max=255"`
	SourcePath         string `json:"sourcePath" validate:"max=1024"`
	RestockBaseline    int    `json:"restockBaseline" validate:"gte=0"`
	Active             *bool  `json:"active"`
}

// ProfileUpsert creates or replaces the automation profile of a product.
// Profiles are active unless the body says otherwise.
func ProfileUpsert(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body upsertProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		active := true
		if body.Active != nil {
			active = *body.Active
		}
		profile, err := svc.Upsert(r.Context(), profiles.UpsertInput{
			ProductID:          productID,
			CollectionConfigID: body.CollectionConfigID,
			ValidationConfigID: body.ValidationConfigID,
			SourcePath:         body.SourcePath,
			RestockBaseline:    body.RestockBaseline,
			Active:             active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
