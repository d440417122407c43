package jobservicewebhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/enums"
)

// Envelope is the callback body posted by the job service.
type Envelope struct {
	Type     string          `json:"type"`
	JobID    looseString     `json:"jobId,omitempty"`
	EventID  looseString     `json:"eventId,omitempty"`
	Hit      json.RawMessage `json:"hit,omitempty"`
	Progress json.RawMessage `json:"progress,omitempty"`
}

// EventType normalizes the type; a missing type is recorded as unknown.
func (e Envelope) EventType() enums.WebhookEventType {
	t := strings.TrimSpace(e.Type)
	if t == "" {
		return enums.WebhookEventUnknown
	}
	return enums.WebhookEventType(t)
}

// looseString accepts JSON strings and numbers; some job service builds emit
// numeric ids.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

func (s looseString) String() string { return string(s) }

// ProcessingStatus summarizes what a dispatch did with an event.
type ProcessingStatus string

const (
	StatusProcessed ProcessingStatus = "processed"
	StatusDuplicate ProcessingStatus = "duplicate"
	StatusIgnored   ProcessingStatus = "ignored"
	StatusUnhandled ProcessingStatus = "unhandled"
	StatusFailed    ProcessingStatus = "failed"
)

// ProcessingResult is stored on the event once it is marked processed.
type ProcessingResult struct {
	Success   bool             `json:"success"`
	Status    ProcessingStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	ProductID string           `json:"productId,omitempty"`
	Added     int              `json:"added,omitempty"`
	Checked   int              `json:"checked,omitempty"`
	Skipped   int              `json:"skipped,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// ReceiveResult is returned once an event has been durably recorded.
type ReceiveResult struct {
	EventID   uint64 `json:"eventId"`
	Duplicate bool   `json:"duplicate"`
}

// DrainSummary reports one drain pass.
type DrainSummary struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

// EventPage is one page of the recorded event log.
type EventPage struct {
	Events     []models.WebhookEvent
	NextCursor string
}
