package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobservicewebhook "github.com/angelmondragon/stockroom/internal/webhooks/jobservice"
	"github.com/angelmondragon/stockroom/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/pagination"
)

type stubReceiver struct {
	calls  int
	result jobservicewebhook.ReceiveResult
	err    error
}

func (s *stubReceiver) Receive(_ context.Context, raw []byte) (jobservicewebhook.ReceiveResult, error) {
	s.calls++
	return s.result, s.err
}

type stubEventLog struct {
	processed *bool
	limit     int
	cursor    string
	page      jobservicewebhook.EventPage
	summary   jobservicewebhook.DrainSummary
}

func (s *stubEventLog) ListEvents(_ context.Context, processed *bool, params pagination.Params) (jobservicewebhook.EventPage, error) {
	s.processed = processed
	s.limit = params.Limit
	s.cursor = params.Cursor
	return s.page, nil
}

func (s *stubEventLog) DrainUnprocessed(_ context.Context, limit int) (jobservicewebhook.DrainSummary, error) {
	s.limit = limit
	return s.summary, nil
}

func post(handler http.HandlerFunc, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/job-service", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(jobservicewebhook.SignatureHeader, signature)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestJobServiceWebhookRecordsEvent(t *testing.T) {
	recv := &stubReceiver{result: jobservicewebhook.ReceiveResult{EventID: 42}}
	body := `{"type":"job.completed","jobId":"j1"}`

	resp := post(JobServiceWebhook("s3cret", recv, nil), body, jobservicewebhook.Sign("s3cret", []byte(body)))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, recv.calls)

	var envelope struct {
		Data struct {
			Success   bool   `json:"success"`
			EventID   uint64 `json:"eventId"`
			Duplicate bool   `json:"duplicate"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.True(t, envelope.Data.Success)
	assert.Equal(t, uint64(42), envelope.Data.EventID)
	assert.False(t, envelope.Data.Duplicate)
}

func TestJobServiceWebhookRejectsBadSignatureBeforeRecording(t *testing.T) {
	recv := &stubReceiver{}
	body := `{"type":"job.completed","jobId":"j1"}`

	resp := post(JobServiceWebhook("s3cret", recv, nil), body, jobservicewebhook.Sign("other", []byte(body)))
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = post(JobServiceWebhook("s3cret", recv, nil), body, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Zero(t, recv.calls)
}

func TestJobServiceWebhookWithoutSecretSkipsVerification(t *testing.T) {
	recv := &stubReceiver{result: jobservicewebhook.ReceiveResult{EventID: 7, Duplicate: true}}
	resp := post(JobServiceWebhook("", recv, nil), `{"type":"job.hit"}`, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"duplicate":true`)
}

func TestJobServiceWebhookMapsErrors(t *testing.T) {
	recv := &stubReceiver{err: pkgerrors.New(pkgerrors.CodeValidation, "webhook body must be a JSON object")}
	resp := post(JobServiceWebhook("", recv, nil), `not json`, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	recv.err = pkgerrors.Wrap(pkgerrors.CodeStorage, errors.New("disk full"), "record webhook event")
	resp = post(JobServiceWebhook("", recv, nil), `{}`, "")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestListEventsParsesFilters(t *testing.T) {
	log := &stubEventLog{page: jobservicewebhook.EventPage{
		Events:     []models.WebhookEvent{{ID: 3, EventType: "job.hit", Payload: []byte(`{"type":"job.hit"}`)}},
		NextCursor: "next",
	}}
	req := httptest.NewRequest(http.MethodGet, "/?processed=false&limit=20&cursor=abc", nil)
	resp := httptest.NewRecorder()
	ListEvents(log, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, log.processed)
	require.False(t, *log.processed)
	require.Equal(t, 20, log.limit)
	require.Equal(t, "abc", log.cursor)
	require.Contains(t, resp.Body.String(), `"eventType":"job.hit"`)
	require.Contains(t, resp.Body.String(), `"nextCursor":"next"`)
}

func TestDrainEventsReturnsSummary(t *testing.T) {
	log := &stubEventLog{summary: jobservicewebhook.DrainSummary{Scanned: 3, Processed: 2, Deferred: 1}}
	resp := httptest.NewRecorder()
	DrainEvents(log, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 100, log.limit)
	require.Contains(t, resp.Body.String(), `"processed":2`)
}
