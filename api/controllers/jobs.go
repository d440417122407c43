package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockroom/api/responses"
	"github.com/angelmondragon/stockroom/api/validators"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/jobservice"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

// JobClient is the job service surface exposed to operators.
type JobClient interface {
	Status(ctx context.Context) (*jobservice.ServiceStatus, error)
	CreateJob(ctx context.Context, req jobservice.CreateJobRequest) (*jobservice.Job, error)
	StartJob(ctx context.Context, jobID string) (*jobservice.Job, error)
	StopJob(ctx context.Context, jobID string) (*jobservice.Job, error)
	GetJob(ctx context.Context, jobID string) (*jobservice.Job, error)
	GetHits(ctx context.Context, jobID string) ([]jobservice.Hit, error)
}

func jobIDParam(r *http.Request) (string, error) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobId"))
	if jobID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "jobId is required")
	}
	return jobID, nil
}

func JobServiceStatus(client JobClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := client.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

type createJobRequest struct {
	Name       string                 `json:"name" validate:"required,max=255"`
	ConfigID   string                 `json:"configId" validate:"required"`
	SourcePath string                 `json:"sourcePath"`
	Options    map[string]any         `json:"options"`
	Metadata   jobservice.JobMetadata `json:"metadata"`
}

func JobCreate(client JobClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createJobRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := client.CreateJob(r.Context(), jobservice.CreateJobRequest{
			Name:       validators.SanitizeString(body.Name, 255),
			ConfigID:   strings.TrimSpace(body.ConfigID),
			SourcePath: strings.TrimSpace(body.SourcePath),
			Options:    body.Options,
			Metadata:   body.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, job)
	}
}

func JobGet(client JobClient, logg *logger.Logger) http.HandlerFunc {
	return jobActionHandler(client.GetJob, logg)
}

func JobStart(client JobClient, logg *logger.Logger) http.HandlerFunc {
	return jobActionHandler(client.StartJob, logg)
}

func JobStop(client JobClient, logg *logger.Logger) http.HandlerFunc {
	return jobActionHandler(client.StopJob, logg)
}

func jobActionHandler(action func(context.Context, string) (*jobservice.Job, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := jobIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithJobID(ctx, jobID)
		}
		job, err := action(ctx, jobID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, job)
	}
}

func JobHits(client JobClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := jobIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		hits, err := client.GetHits(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if hits == nil {
			hits = []jobservice.Hit{}
		}
		responses.WriteSuccess(w, map[string]any{"jobId": jobID, "count": len(hits), "hits": hits})
	}
}
