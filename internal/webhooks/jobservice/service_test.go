package jobservicewebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom/internal/inventory"
	"github.com/angelmondragon/stockroom/pkg/db/dbtest"
	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/jobservice"
	"github.com/angelmondragon/stockroom/pkg/logger"
	"github.com/angelmondragon/stockroom/pkg/metrics"
	"github.com/angelmondragon/stockroom/pkg/pagination"
)

type fakeJobs struct {
	jobs     map[string]*jobservice.Job
	hits     map[string][]jobservice.Hit
	getErr   error
	getCalls int
}

func (f *fakeJobs) GetJob(_ context.Context, jobID string) (*jobservice.Job, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return &jobservice.Job{ID: jobID}, nil
	}
	return job, nil
}

func (f *fakeJobs) GetHits(_ context.Context, jobID string) ([]jobservice.Hit, error) {
	return f.hits[jobID], nil
}

type fixture struct {
	svc    *Service
	ledger inventory.Service
	repo   Repository
	jobs   *fakeJobs
}

func newFixture(t *testing.T, maxAttempts int) fixture {
	t.Helper()
	client := dbtest.Open(t)
	clock := func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	ledger, err := inventory.NewService(inventory.ServiceParams{
		Repo:  inventory.NewRepository(client.DB()),
		Tx:    client,
		Clock: clock,
	})
	require.NoError(t, err)

	jobs := &fakeJobs{jobs: map[string]*jobservice.Job{}, hits: map[string][]jobservice.Hit{}}
	repo := NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		Jobs:        jobs,
		Ledger:      ledger,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
		Metrics:     metrics.NewWebhookMetrics(prometheus.NewRegistry()),
		MaxAttempts: maxAttempts,
		Clock:       clock,
	})
	require.NoError(t, err)
	return fixture{svc: svc, ledger: ledger, repo: repo, jobs: jobs}
}

func hits(t *testing.T, records ...any) []jobservice.Hit {
	t.Helper()
	out := make([]jobservice.Hit, 0, len(records))
	for _, rec := range records {
		if raw, ok := rec.(string); ok {
			out = append(out, jobservice.Hit(raw))
			continue
		}
		b, err := json.Marshal(rec)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func storedResult(t *testing.T, repo Repository, id uint64) (models.WebhookEvent, ProcessingResult) {
	t.Helper()
	event, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	var result ProcessingResult
	if len(event.ProcessingResult) > 0 {
		require.NoError(t, json.Unmarshal(event.ProcessingResult, &result))
	}
	return *event, result
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"type":"job.completed","jobId":"J1"}`)
	sig := Sign("secret", payload)

	assert.True(t, VerifySignature("secret", payload, sig))
	assert.True(t, VerifySignature("secret", payload, "  "+sig+" "))
	assert.False(t, VerifySignature("secret", payload, ""))
	assert.False(t, VerifySignature("secret", payload, "not-hex"))
	assert.False(t, VerifySignature("other", payload, sig))
	assert.False(t, VerifySignature("secret", append(payload, ' '), sig))
	assert.True(t, VerifySignature("", payload, ""))
}

func TestExtractContent(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"success key", `{"data":{"SUCCESS":"a","DATA":"b"}}`, "a", true},
		{"data key", `{"data":{"DATA":"b"},"capturedData":"c"}`, "b", true},
		{"data content", `{"data":{"content":"x"}}`, "x", true},
		{"captured", `{"data":{"SUCCESS":""},"capturedData":"c"}`, "c", true},
		{"top level content", `{"content":"  d  "}`, "d", true},
		{"non string value", `{"data":{"SUCCESS":42},"content":"e"}`, "e", true},
		{"empty record", `{}`, "", false},
		{"not an object", `"plain"`, "", false},
		{"garbage", `{`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractContent(json.RawMessage(tc.raw))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReceiveRecordsAndDedupes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	body := []byte(`{"type":"job.completed","jobId":"J1","eventId":"evt-1"}`)

	first, err := f.svc.Receive(ctx, body)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.NotZero(t, first.EventID)

	second, err := f.svc.Receive(ctx, body)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.EventID, second.EventID)

	page, err := f.svc.ListEvents(ctx, nil, pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	events := page.Events
	require.Len(t, events, 1)
	assert.Equal(t, "job.completed", events[0].EventType)
	require.NotNil(t, events[0].JobID)
	assert.Equal(t, "J1", *events[0].JobID)
	assert.False(t, events[0].Processed)
}

func TestReceiveValidation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for _, body := range []string{"not json", "", "[1,2]", `{"type":`} {
		_, err := f.svc.Receive(ctx, []byte(body))
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "body %q", body)
	}

	res, err := f.svc.Receive(ctx, []byte(`{"jobId":17}`))
	require.NoError(t, err)
	event, _ := storedResult(t, f.repo, res.EventID)
	assert.Equal(t, enums.WebhookEventUnknown.String(), event.EventType)
	require.NotNil(t, event.JobID)
	assert.Equal(t, "17", *event.JobID)
}

func TestDrainCollectionJobAddsItems(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.jobs.jobs["J1"] = &jobservice.Job{ID: "J1", Metadata: jobservice.JobMetadata{
		Type: "collection", ProductID: "p1", Category: "games", Tags: []string{"eu"},
	}}
	f.jobs.hits["J1"] = hits(t,
		map[string]any{"data": map[string]any{"SUCCESS": "code-1"}},
		map[string]any{"capturedData": "code-2"},
		map[string]any{"content": "code-3"},
		`{"broken"`,
		map[string]any{"data": map[string]any{}},
	)

	res, err := f.svc.Receive(ctx, []byte(`{"type":"job.completed","jobId":"J1","eventId":"e1"}`))
	require.NoError(t, err)

	summary, err := f.svc.DrainUnprocessed(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, DrainSummary{Scanned: 1, Processed: 1}, summary)

	event, result := storedResult(t, f.repo, res.EventID)
	assert.True(t, event.Processed)
	assert.NotNil(t, event.ProcessedAt)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 2, result.Skipped)

	stats, err := f.ledger.GetStats(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.AvailableItems)

	items, err := f.ledger.GetAvailableItems(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "games", items[0].Category)
	assert.Equal(t, itemSource, items[0].Source)

	again, err := f.svc.DrainUnprocessed(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, again.Scanned)
}

func TestDrainCompletedTwiceForSameJobIsIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.jobs.hits["J1"] = hits(t, map[string]any{"content": "code-1"}, map[string]any{"content": "code-2"})

	_, err := f.svc.Receive(ctx, []byte(`{"type":"job.completed","jobId":"J1","eventId":"e1"}`))
	require.NoError(t, err)
	second, err := f.svc.Receive(ctx, []byte(`{"type":"job.completed","jobId":"J1","eventId":"e2"}`))
	require.NoError(t, err)

	summary, err := f.svc.DrainUnprocessed(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)

	_, result := storedResult(t, f.repo, second.EventID)
	assert.Equal(t, StatusDuplicate, result.Status)

	stats, err := f.ledger.GetStats(ctx, defaultProductID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalItems)
}

func TestDrainValidationJobRecordsChecks(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.ledger.AddItems(ctx, inventory.AddItemsInput{ProductID: "p1", Contents: []string{"a", "b"}, Source: "manual"})
	require.NoError(t, err)
	items, err := f.ledger.GetAvailableItems(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	f.jobs.jobs["V1"] = &jobservice.Job{ID: "V1", Metadata: jobservice.JobMetadata{Type: "validation", ProductID: "p1"}}
	f.jobs.hits["V1"] = hits(t,
		map[string]any{"itemId": items[0].ID, "result": "valid", "score": 0.95, "executionTimeMs": 120},
		map[string]any{"itemId": items[1].ID, "result": "invalid", "score": 0.1, "details": map[string]any{"reason": "expired"}},
		map[string]any{"itemId": 999999, "result": "valid", "score": 0.9},
		map[string]any{"itemId": items[0].ID, "result": "maybe", "score": 0.5},
		map[string]any{"result": "valid", "score": 0.9},
	)

	res, err := f.svc.Receive(ctx, []byte(`{"type":"job.completed","jobId":"V1"}`))
	require.NoError(t, err)
	_, err = f.svc.DrainUnprocessed(ctx, 10)
	require.NoError(t, err)

	_, result := storedResult(t, f.repo, res.EventID)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 3, result.Skipped)

	stats, err := f.ledger.GetStats(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ValidItems)
	assert.EqualValues(t, 1, stats.InvalidItems)
	assert.EqualValues(t, 0, stats.UncheckedItems)
}

func TestDrainRetriesTransientFailuresUntilLimit(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.jobs.getErr = pkgerrors.Wrap(pkgerrors.CodeJobService, errors.New("status 503"), "get job failed")

	res, err := f.svc.Receive(ctx, []byte(`{"type":"job.completed","jobId":"J9"}`))
	require.NoError(t, err)

	first, err := f.svc.DrainUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, DrainSummary{Scanned: 1, Deferred: 1}, first)
	event, _ := storedResult(t, f.repo, res.EventID)
	assert.False(t, event.Processed)
	assert.Equal(t, 1, event.Attempts)
	require.NotNil(t, event.LastError)
	assert.Contains(t, *event.LastError, "status 503")

	second, err := f.svc.DrainUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, DrainSummary{Scanned: 1, Failed: 1}, second)
	event, result := storedResult(t, f.repo, res.EventID)
	assert.True(t, event.Processed)
	assert.False(t, result.Success)
	assert.True(t, result.Retryable)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestDrainContinuesPastFailures(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	bodies := []string{
		`{"type":"job.completed"}`,
		`{"type":"job.progress","jobId":"J1","progress":{"percent":40}}`,
		`{"type":"job.exploded","jobId":"J1"}`,
		`{"type":"job.hit","jobId":"J1","hit":{"content":"solo"}}`,
	}
	ids := make([]uint64, 0, len(bodies))
	for _, body := range bodies {
		res, err := f.svc.Receive(ctx, []byte(body))
		require.NoError(t, err)
		ids = append(ids, res.EventID)
	}

	summary, err := f.svc.DrainUnprocessed(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Scanned)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Processed)

	_, missingJob := storedResult(t, f.repo, ids[0])
	assert.Equal(t, StatusFailed, missingJob.Status)
	assert.False(t, missingJob.Retryable)

	_, progress := storedResult(t, f.repo, ids[1])
	assert.Equal(t, StatusIgnored, progress.Status)

	_, unknown := storedResult(t, f.repo, ids[2])
	assert.Equal(t, StatusUnhandled, unknown.Status)

	_, hit := storedResult(t, f.repo, ids[3])
	assert.Equal(t, 1, hit.Added)

	processed := true
	page, err := f.svc.ListEvents(ctx, &processed, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Events, 4)

	first, err := f.svc.ListEvents(ctx, &processed, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Events, 3)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, ids[3], first.Events[0].ID)

	rest, err := f.svc.ListEvents(ctx, &processed, pagination.Params{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Events, 1)
	assert.Equal(t, ids[0], rest.Events[0].ID)
	assert.Empty(t, rest.NextCursor)

	_, err = f.svc.ListEvents(ctx, nil, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHitEventsDedupeByContentWithoutEventID(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.jobs.jobs["J1"] = &jobservice.Job{ID: "J1", Metadata: jobservice.JobMetadata{ProductID: "p1"}}

	for i := 0; i < 2; i++ {
		_, err := f.svc.Receive(ctx, []byte(`{"type":"job.hit","jobId":"J1","hit":{"data":{"DATA":"same"}}}`))
		require.NoError(t, err)
	}
	_, err := f.svc.Receive(ctx, []byte(`{"type":"job.hit","jobId":"J1","hit":{"data":{"DATA":"other"}}}`))
	require.NoError(t, err)

	_, err = f.svc.DrainUnprocessed(ctx, 10)
	require.NoError(t, err)

	stats, err := f.ledger.GetStats(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalItems)
}

func TestMarkProcessedOverwrites(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	res, err := f.svc.Receive(ctx, []byte(`{"type":"job.progress"}`))
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkProcessed(ctx, res.EventID, ProcessingResult{Status: StatusIgnored, Message: "first"}))
	require.NoError(t, f.svc.MarkProcessed(ctx, res.EventID, ProcessingResult{Success: true, Status: StatusProcessed, Message: "second"}))

	event, result := storedResult(t, f.repo, res.EventID)
	assert.True(t, event.Processed)
	assert.Equal(t, "second", result.Message)

	err = f.svc.MarkProcessed(ctx, res.EventID+100, ProcessingResult{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), fmt.Sprint(err))
}
