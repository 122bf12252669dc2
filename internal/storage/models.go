package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial" // some decompose items failed
	StatusFailed  = "failed"
)

// Run is one executed instruction.
type Run struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"` // "decompose", "imitate", "originate", "analyze"
	Input      string    `json:"input"`     // instruction text as received
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunItem is the per-index outcome of a decompose run.
type RunItem struct {
	RunID      string `json:"run_id"`
	Position   int    `json:"position"`
	QueueIndex int    `json:"queue_index"`
	VideoID    string `json:"video_id,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Script records a generated script artifact.
type Script struct {
	ID            string    `json:"id"`
	RunID         string    `json:"run_id"`
	Operation     string    `json:"operation"`
	SourceVideoID string    `json:"source_video_id,omitempty"`
	Topic         string    `json:"topic,omitempty"`
	Product       string    `json:"product"`
	Path          string    `json:"path"`
	CreatedAt     time.Time `json:"created_at"`
}
