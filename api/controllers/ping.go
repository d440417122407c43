package controllers

import (
	"net/http"

	"github.com/angelmondragon/stockroom/api/middleware"
	"github.com/angelmondragon/stockroom/api/responses"
	"github.com/angelmondragon/stockroom/pkg/config"
)

type pingResponse struct {
	Scope   string `json:"scope"`
	Status  string `json:"status"`
	Env     string `json:"env,omitempty"`
	Subject string `json:"subject,omitempty"`
	Role    string `json:"role,omitempty"`
}

func PublicPing(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingResponse{Scope: "public", Status: "ok", Env: cfg.App.Env})
	}
}

// AdminPing echoes the authenticated caller, which makes it a cheap token check.
func AdminPing(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingResponse{
			Scope:   "admin",
			Status:  "ok",
			Env:     cfg.App.Env,
			Subject: middleware.UserIDFromContext(r.Context()),
			Role:    middleware.RoleFromContext(r.Context()),
		})
	}
}
