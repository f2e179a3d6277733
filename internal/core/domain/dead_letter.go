package domain

import (
	"encoding/json"
	"time"

	"github.com/vietddude/toolgate/internal/core/failure"
)

// DeadLetter is a tool execution that kept failing with a retryable error
// after its retries were used up.
type DeadLetter struct {
	ID          string              `json:"id"`
	Operation   string              `json:"operation"`
	Tool        string              `json:"tool"`
	Request     json.RawMessage     `json:"request"`
	LastError   *failure.Descriptor `json:"last_error,omitempty"`
	Attempts    int                 `json:"attempts"`
	Status      DeadLetterStatus    `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	LastAttempt time.Time           `json:"last_attempt"`
}

type DeadLetterStatus string

// DeadLetterStatusPending is the only status a stored letter carries;
// resolved letters are deleted.
const DeadLetterStatusPending DeadLetterStatus = "pending"
