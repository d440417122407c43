package jobservicewebhook

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/stockroom/pkg/enums"
)

// hitRecord covers the shapes result records arrive in. Content is looked up
// in data.SUCCESS, data.DATA, data.content, capturedData, then content.
type hitRecord struct {
	Data         map[string]json.RawMessage `json:"data"`
	CapturedData json.RawMessage            `json:"capturedData"`
	Content      json.RawMessage            `json:"content"`
}

var dataContentKeys = []string{"SUCCESS", "DATA", "content"}

// ExtractContent pulls the item content out of one raw result record. It
// returns false when the record is malformed or carries no usable content.
func ExtractContent(raw json.RawMessage) (string, bool) {
	var rec hitRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", false
	}
	for _, key := range dataContentKeys {
		if v, ok := nonEmptyString(rec.Data[key]); ok {
			return v, true
		}
	}
	if v, ok := nonEmptyString(rec.CapturedData); ok {
		return v, true
	}
	return nonEmptyString(rec.Content)
}

func nonEmptyString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// validationRecord is one result of a validation job.
type validationRecord struct {
	ItemID          json.Number     `json:"itemId"`
	Result          string          `json:"result"`
	Score           *float64        `json:"score"`
	Method          string          `json:"method"`
	Details         json.RawMessage `json:"details"`
	ExecutionTimeMs int64           `json:"executionTimeMs"`
}

type validationOutcome struct {
	ItemID          uint64
	Result          enums.ValidityResult
	Score           float64
	Method          string
	Details         json.RawMessage
	ExecutionTimeMs int64
}

func parseValidationRecord(raw json.RawMessage) (validationOutcome, bool) {
	var rec validationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return validationOutcome{}, false
	}
	id, err := rec.ItemID.Int64()
	if err != nil || id <= 0 {
		return validationOutcome{}, false
	}
	result, err := enums.ParseValidityResult(strings.ToLower(strings.TrimSpace(rec.Result)))
	if err != nil || rec.Score == nil {
		return validationOutcome{}, false
	}
	method := strings.TrimSpace(rec.Method)
	if method == "" {
		method = "job-service"
	}
	return validationOutcome{
		ItemID:          uint64(id),
		Result:          result,
		Score:           *rec.Score,
		Method:          method,
		Details:         rec.Details,
		ExecutionTimeMs: rec.ExecutionTimeMs,
	}, true
}
