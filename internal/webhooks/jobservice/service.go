package jobservicewebhook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom/internal/inventory"
	"github.com/angelmondragon/stockroom/pkg/db"
	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/jobservice"
	"github.com/angelmondragon/stockroom/pkg/logger"
	"github.com/angelmondragon/stockroom/pkg/metrics"
	"github.com/angelmondragon/stockroom/pkg/pagination"
)

const (
	defaultProductID   = "default"
	defaultCategory    = "general"
	defaultMaxAttempts = 5
	itemSource         = "job-service"
)

// JobReader is the read side of the job service client.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*jobservice.Job, error)
	GetHits(ctx context.Context, jobID string) ([]jobservice.Hit, error)
}

// Ledger is the slice of the inventory service fed by callbacks.
type Ledger interface {
	AddItems(ctx context.Context, input inventory.AddItemsInput) (inventory.AddItemsResult, error)
	AddValidityCheck(ctx context.Context, input inventory.ValidityCheckInput) error
}

type ServiceParams struct {
	Repo        Repository
	Jobs        JobReader
	Ledger      Ledger
	Logger      *logger.Logger
	Metrics     *metrics.WebhookMetrics
	MaxAttempts int
	Clock       func() time.Time
}

// Service records job service callbacks and applies them to the ledger.
type Service struct {
	repo        Repository
	jobs        JobReader
	ledger      Ledger
	logg        *logger.Logger
	metrics     *metrics.WebhookMetrics
	maxAttempts int
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repository required")
	}
	if params.Jobs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "job reader required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:        params.Repo,
		jobs:        params.Jobs,
		ledger:      params.Ledger,
		logg:        params.Logger,
		metrics:     params.Metrics,
		maxAttempts: maxAttempts,
		now:         clock,
	}, nil
}

// Receive durably records a callback before any handling. A repeated eventId
// resolves to the already recorded row.
func (s *Service) Receive(ctx context.Context, raw []byte) (ReceiveResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ReceiveResult{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook body must be a JSON object")
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return ReceiveResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}

	eventType := env.EventType()
	externalID := env.EventID.String()
	if externalID != "" {
		existing, err := s.repo.FindByExternalID(ctx, externalID)
		if err == nil {
			return s.duplicate(ctx, eventType, existing), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ReceiveResult{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "lookup webhook event")
		}
	}

	event := &models.WebhookEvent{
		ExternalID: optionalString(externalID),
		EventType:  eventType.String(),
		JobID:      optionalString(env.JobID.String()),
		Payload:    datatypes.JSON(append([]byte(nil), trimmed...)),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		if externalID != "" && db.IsUniqueViolation(err, "") {
			existing, findErr := s.repo.FindByExternalID(ctx, externalID)
			if findErr == nil {
				return s.duplicate(ctx, eventType, existing), nil
			}
		}
		return ReceiveResult{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record webhook event")
	}

	ctx = s.logg.WithEventID(ctx, event.ID)
	s.logg.Info(s.logg.WithField(ctx, "event_type", event.EventType), "webhook event recorded")
	s.metrics.IncReceived(event.EventType, "recorded")
	return ReceiveResult{EventID: event.ID}, nil
}

func (s *Service) duplicate(ctx context.Context, eventType enums.WebhookEventType, existing *models.WebhookEvent) ReceiveResult {
	ctx = s.logg.WithEventID(ctx, existing.ID)
	s.logg.Info(ctx, "duplicate webhook event ignored")
	s.metrics.IncReceived(eventType.String(), "duplicate")
	return ReceiveResult{EventID: existing.ID, Duplicate: true}
}

// Dispatch applies one recorded event. Handler failures are reported in the
// result, never returned.
func (s *Service) Dispatch(ctx context.Context, event models.WebhookEvent) ProcessingResult {
	ctx = s.logg.WithEventID(ctx, event.ID)

	var env Envelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return s.finish(ctx, event.EventType, failed(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "stored payload unreadable")))
	}
	if env.JobID == "" && event.JobID != nil {
		env.JobID = looseString(*event.JobID)
	}
	if env.JobID != "" {
		ctx = s.logg.WithJobID(ctx, env.JobID.String())
	}

	var result ProcessingResult
	switch enums.WebhookEventType(event.EventType) {
	case enums.WebhookEventJobCompleted:
		result = s.handleCompleted(ctx, env)
	case enums.WebhookEventJobHit:
		result = s.handleHit(ctx, env, event)
	case enums.WebhookEventJobProgress:
		result = ProcessingResult{Success: true, Status: StatusIgnored, Message: "progress update"}
	default:
		result = ProcessingResult{Status: StatusUnhandled, Message: fmt.Sprintf("unknown event type %q", event.EventType)}
	}
	return s.finish(ctx, event.EventType, result)
}

func (s *Service) finish(ctx context.Context, eventType string, result ProcessingResult) ProcessingResult {
	s.metrics.IncDispatched(eventType, string(result.Status))
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_type": eventType,
		"status":     result.Status,
		"added":      result.Added,
		"skipped":    result.Skipped,
	})
	if result.Status == StatusFailed {
		s.logg.Warn(ctx, "webhook dispatch failed: "+result.Error)
	} else {
		s.logg.Info(ctx, "webhook dispatched")
	}
	return result
}

func (s *Service) handleCompleted(ctx context.Context, env Envelope) ProcessingResult {
	jobID := env.JobID.String()
	if jobID == "" {
		return failed(pkgerrors.New(pkgerrors.CodeValidation, "job id missing"))
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return failed(err)
	}
	hits, err := s.jobs.GetHits(ctx, jobID)
	if err != nil {
		return failed(err)
	}
	meta := normalizeMetadata(job.Metadata)

	if meta.Type == enums.JobKindValidation.String() {
		return s.applyValidation(ctx, meta.ProductID, hits)
	}

	contents := make([]string, 0, len(hits))
	skipped := 0
	for _, hit := range hits {
		content, ok := ExtractContent(hit)
		if !ok {
			skipped++
			continue
		}
		contents = append(contents, content)
	}
	if len(contents) == 0 {
		return ProcessingResult{
			Success:   true,
			Status:    StatusProcessed,
			ProductID: meta.ProductID,
			Skipped:   skipped,
			Message:   fmt.Sprintf("job %s completed with no usable records", jobID),
		}
	}
	return s.addItems(ctx, meta, contents, "job.completed:"+jobID, skipped)
}

func (s *Service) handleHit(ctx context.Context, env Envelope, event models.WebhookEvent) ProcessingResult {
	if len(env.Hit) == 0 {
		return failed(pkgerrors.New(pkgerrors.CodeValidation, "hit payload missing"))
	}
	content, ok := ExtractContent(env.Hit)
	if !ok {
		return ProcessingResult{Status: StatusIgnored, Skipped: 1, Message: "hit carried no usable content"}
	}

	meta := normalizeMetadata(jobservice.JobMetadata{})
	jobID := env.JobID.String()
	if jobID != "" {
		job, err := s.jobs.GetJob(ctx, jobID)
		if err != nil {
			return failed(err)
		}
		meta = normalizeMetadata(job.Metadata)
	}

	batchKey := ""
	switch {
	case env.EventID != "":
		batchKey = "job.hit:" + env.EventID.String()
	case event.ExternalID != nil:
		batchKey = "job.hit:" + *event.ExternalID
	default:
		sum := sha256.Sum256([]byte(content))
		batchKey = fmt.Sprintf("job.hit:%s:%s", jobID, hex.EncodeToString(sum[:])[:16])
	}
	return s.addItems(ctx, meta, []string{content}, batchKey, 0)
}

func (s *Service) addItems(ctx context.Context, meta jobservice.JobMetadata, contents []string, batchKey string, skipped int) ProcessingResult {
	res, err := s.ledger.AddItems(ctx, inventory.AddItemsInput{
		ProductID: meta.ProductID,
		Contents:  contents,
		Source:    itemSource,
		Category:  meta.Category,
		Tags:      meta.Tags,
		BatchKey:  batchKey,
	})
	if err != nil {
		result := failed(err)
		result.ProductID = meta.ProductID
		return result
	}
	if res.Duplicate {
		return ProcessingResult{
			Success:   true,
			Status:    StatusDuplicate,
			ProductID: meta.ProductID,
			Skipped:   skipped,
			Message:   "batch already ingested",
		}
	}
	return ProcessingResult{
		Success:   true,
		Status:    StatusProcessed,
		ProductID: meta.ProductID,
		Added:     res.Added,
		Skipped:   skipped,
	}
}

func (s *Service) applyValidation(ctx context.Context, productID string, hits []jobservice.Hit) ProcessingResult {
	checked, skipped := 0, 0
	for _, hit := range hits {
		outcome, ok := parseValidationRecord(hit)
		if !ok {
			skipped++
			continue
		}
		err := s.ledger.AddValidityCheck(ctx, inventory.ValidityCheckInput{
			ItemID:          outcome.ItemID,
			Result:          outcome.Result,
			Score:           outcome.Score,
			Method:          outcome.Method,
			Details:         outcome.Details,
			ExecutionTimeMs: outcome.ExecutionTimeMs,
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				skipped++
				continue
			}
			result := failed(err)
			result.ProductID = productID
			result.Checked = checked
			return result
		}
		checked++
	}
	return ProcessingResult{
		Success:   true,
		Status:    StatusProcessed,
		ProductID: productID,
		Checked:   checked,
		Skipped:   skipped,
	}
}

// MarkProcessed stores the result and flags the event processed. Repeated
// calls overwrite the stored result.
func (s *Service) MarkProcessed(ctx context.Context, eventID uint64, result ProcessingResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode processing result")
	}
	if err := s.repo.MarkProcessed(ctx, eventID, datatypes.JSON(payload), s.now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "webhook event not found").
				WithDetails(map[string]any{"eventId": eventID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "mark webhook processed")
	}
	return nil
}

// DrainUnprocessed dispatches up to limit pending events, oldest first.
// Retryable failures stay pending until they reach the attempt limit; every
// other outcome is marked processed.
func (s *Service) DrainUnprocessed(ctx context.Context, limit int) (DrainSummary, error) {
	if limit <= 0 {
		return DrainSummary{}, pkgerrors.New(pkgerrors.CodeValidation, "limit must be positive")
	}
	events, err := s.repo.ListUnprocessed(ctx, limit)
	if err != nil {
		return DrainSummary{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list unprocessed webhook events")
	}

	summary := DrainSummary{Scanned: len(events)}
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		eventCtx := s.logg.WithEventID(ctx, event.ID)
		result := s.Dispatch(ctx, event)

		if !result.Success && result.Retryable && event.Attempts+1 < s.maxAttempts {
			if err := s.repo.RecordAttempt(ctx, event.ID, result.Error); err != nil {
				s.logg.Error(eventCtx, "record webhook attempt failed", err)
			}
			summary.Deferred++
			continue
		}

		if err := s.MarkProcessed(ctx, event.ID, result); err != nil {
			s.logg.Error(eventCtx, "mark webhook processed failed", err)
			summary.Failed++
			continue
		}
		if result.Status == StatusFailed {
			summary.Failed++
			continue
		}
		summary.Processed++
	}
	return summary, nil
}

// ListEvents returns one page of events, newest first, optionally filtered by
// processed state. NextCursor is empty on the last page.
func (s *Service) ListEvents(ctx context.Context, processed *bool, params pagination.Params) (EventPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return EventPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var beforeID uint64
	if cursor != nil {
		beforeID = cursor.ID
	}

	limit := pagination.NormalizeLimit(params.Limit)
	events, err := s.repo.List(ctx, processed, beforeID, pagination.LimitWithBuffer(limit))
	if err != nil {
		return EventPage{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list webhook events")
	}

	page := EventPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{ID: page.Events[limit-1].ID})
	}
	return page, nil
}

func normalizeMetadata(meta jobservice.JobMetadata) jobservice.JobMetadata {
	meta.ProductID = strings.TrimSpace(meta.ProductID)
	if meta.ProductID == "" {
		meta.ProductID = defaultProductID
	}
	meta.Category = strings.TrimSpace(meta.Category)
	if meta.Category == "" {
		meta.Category = defaultCategory
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	meta.Type = strings.ToLower(strings.TrimSpace(meta.Type))
	return meta
}

// failed captures err in a result. Only job service and storage failures are
// worth another attempt.
func failed(err error) ProcessingResult {
	result := ProcessingResult{Status: StatusFailed, Error: err.Error()}
	if cause := errors.Unwrap(err); cause != nil {
		result.Error = fmt.Sprintf("%s: %v", err.Error(), cause)
	}
	result.Retryable = pkgerrors.IsCode(err, pkgerrors.CodeJobService) || pkgerrors.IsCode(err, pkgerrors.CodeStorage)
	return result
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
