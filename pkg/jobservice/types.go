package jobservice

import (
	"encoding/json"
	"time"
)

// ServiceStatus is the health payload returned by GET /status.
type ServiceStatus struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Extra   map[string]any `json:"-"`
}

// JobMetadata is attached when a job is created and echoed back on reads.
type JobMetadata struct {
	Type        string   `json:"type,omitempty"`
	ProductID   string   `json:"productId,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	TargetCount int      `json:"targetCount,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
}

// CreateJobRequest is the body sent to POST /jobs.
type CreateJobRequest struct {
	Name       string         `json:"name"`
	ConfigID   string         `json:"configId"`
	SourcePath string         `json:"sourcePath,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
	Metadata   JobMetadata    `json:"metadata"`
}

// Job is the descriptor the service returns for create/start/stop/get.
type Job struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	State     string      `json:"status"`
	Metadata  JobMetadata `json:"metadata"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
}

// Hit is one raw result record. Records are decoded lazily so a malformed
// record does not poison the whole batch.
type Hit = json.RawMessage
