package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/stockroom/api/responses"
	"github.com/angelmondragon/stockroom/api/validators"
	jobservicewebhook "github.com/angelmondragon/stockroom/internal/webhooks/jobservice"
	"github.com/angelmondragon/stockroom/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/logger"
	"github.com/angelmondragon/stockroom/pkg/pagination"
)

const maxWebhookBodyBytes = 1 << 20

// Receiver records job service callbacks.
type Receiver interface {
	Receive(ctx context.Context, raw []byte) (jobservicewebhook.ReceiveResult, error)
}

// EventLog exposes the recorded callbacks to operators.
type EventLog interface {
	ListEvents(ctx context.Context, processed *bool, params pagination.Params) (jobservicewebhook.EventPage, error)
	DrainUnprocessed(ctx context.Context, limit int) (jobservicewebhook.DrainSummary, error)
}

// JobServiceWebhook verifies the signature over the raw body and records the
// event. Dispatch happens later in the drain task; the response only confirms
// durable receipt.
func JobServiceWebhook(secret string, svc Receiver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		signature := r.Header.Get(jobservicewebhook.SignatureHeader)
		if !jobservicewebhook.VerifySignature(secret, body, signature) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "invalid webhook signature"))
			return
		}

		res, err := svc.Receive(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"success":   true,
			"eventId":   res.EventID,
			"duplicate": res.Duplicate,
		})
	}
}

type webhookEventView struct {
	ID               uint64          `json:"id"`
	ExternalID       *string         `json:"externalId,omitempty"`
	EventType        string          `json:"eventType"`
	JobID            *string         `json:"jobId,omitempty"`
	Payload          json.RawMessage `json:"payload"`
	Processed        bool            `json:"processed"`
	Attempts         int             `json:"attempts"`
	LastError        *string         `json:"lastError,omitempty"`
	ProcessingResult json.RawMessage `json:"processingResult,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	ProcessedAt      *time.Time      `json:"processedAt,omitempty"`
}

func newWebhookEventView(e models.WebhookEvent) webhookEventView {
	view := webhookEventView{
		ID:          e.ID,
		ExternalID:  e.ExternalID,
		EventType:   e.EventType,
		JobID:       e.JobID,
		Payload:     json.RawMessage(e.Payload),
		Processed:   e.Processed,
		Attempts:    e.Attempts,
		LastError:   e.LastError,
		CreatedAt:   e.CreatedAt,
		ProcessedAt: e.ProcessedAt,
	}
	if len(e.ProcessingResult) > 0 {
		view.ProcessingResult = json.RawMessage(e.ProcessingResult)
	}
	return view
}

// ListEvents shows recorded callbacks, newest first.
func ListEvents(svc EventLog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processed, err := validators.ParseQueryBool(r, "processed")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListEvents(r.Context(), processed, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]webhookEventView, 0, len(page.Events))
		for _, e := range page.Events {
			views = append(views, newWebhookEventView(e))
		}
		body := map[string]any{"events": views}
		if page.NextCursor != "" {
			body["nextCursor"] = page.NextCursor
		}
		responses.WriteSuccess(w, body)
	}
}

// DrainEvents runs one dispatch pass over unprocessed callbacks.
func DrainEvents(svc EventLog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.DrainUnprocessed(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
