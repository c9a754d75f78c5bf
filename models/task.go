package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TaskRecord is the durable document representing one translation request.
// The client writes the creation-time fields and the initial processing
// status; the remote service owns the terminal transition, progress and the
// result fields. No field is written by both sides.
type TaskRecord struct {
	TaskID         string    `json:"task_id"`
	OwnerID        string    `json:"owner_id"`
	FileName       string    `json:"file_name"`
	TargetLanguage string    `json:"target_language"`
	Status         Status    `json:"status"`
	Progress       float64   `json:"progress"`
	ResultSegments []string  `json:"result_segments,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsTerminal reports whether no further remote mutation is expected.
func (r *TaskRecord) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// JoinedContent concatenates the result segments with a paragraph separator.
func (r *TaskRecord) JoinedContent() string {
	return strings.Join(r.ResultSegments, "\n\n")
}
