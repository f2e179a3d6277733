package domain

import (
	"time"

	"github.com/vietddude/toolgate/internal/core/failure"
)

// FailureRecord is one surfaced failure, as written to the failure log.
type FailureRecord struct {
	ID              string       `json:"id"`
	RequestID       string       `json:"request_id"`
	Operation       string       `json:"operation"`
	Kind            failure.Kind `json:"kind"`
	Message         string       `json:"message"`
	SuggestedAction string       `json:"suggested_action"`
	ErrorCode       string       `json:"error_code,omitempty"`
	StatusCode      int          `json:"status_code,omitempty"`
	Retryable       bool         `json:"retryable"`
	Attempts        int          `json:"attempts"`
	AttemptErrors   []string     `json:"attempt_errors,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// NewFailureRecord builds a record from a surfaced descriptor.
func NewFailureRecord(requestID, operation string, d *failure.Descriptor, attempts int, attemptErrors []string) *FailureRecord {
	return &FailureRecord{
		RequestID:       requestID,
		Operation:       operation,
		Kind:            d.Kind,
		Message:         d.Message,
		SuggestedAction: d.SuggestedAction,
		ErrorCode:       d.ErrorCode,
		StatusCode:      d.StatusCode,
		Retryable:       d.Retryable(),
		Attempts:        attempts,
		AttemptErrors:   attemptErrors,
		CreatedAt:       d.Timestamp,
	}
}
