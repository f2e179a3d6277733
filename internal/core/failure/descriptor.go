package failure

import (
	"encoding/json"
	"time"
)

// Descriptor is the normalized record produced for every classified failure.
// Retryability is derived from Kind and is never stored on its own.
type Descriptor struct {
	Kind            Kind
	Message         string
	SuggestedAction string

	// ErrorCode is the upstream vendor code, kept verbatim.
	ErrorCode string
	// StatusCode is the transport status (HTTP or HTTP-equivalent), 0 when absent.
	StatusCode int
	// Details is the original payload, kept for debugging only.
	Details any
	// RetryAfter is the upstream retry hint, 0 when none was given.
	RetryAfter time.Duration

	Timestamp time.Time

	cause error
}

// Retryable reports whether the failure may succeed on a later attempt.
func (d *Descriptor) Retryable() bool {
	if d == nil {
		return false
	}
	return d.Kind.Retryable()
}

// Error implements the error interface.
func (d *Descriptor) Error() string {
	if d == nil {
		return ""
	}
	if d.ErrorCode != "" {
		return string(d.Kind) + ": " + d.ErrorCode + ": " + d.Message
	}
	return string(d.Kind) + ": " + d.Message
}

// Unwrap returns the Go error the descriptor was built from, if any.
func (d *Descriptor) Unwrap() error {
	if d == nil {
		return nil
	}
	return d.cause
}

type descriptorJSON struct {
	Kind            Kind      `json:"kind"`
	Message         string    `json:"message"`
	SuggestedAction string    `json:"suggested_action"`
	Retryable       bool      `json:"retryable"`
	ErrorCode       string    `json:"error_code,omitempty"`
	StatusCode      int       `json:"status_code,omitempty"`
	RetryAfterMS    int64     `json:"retry_after_ms,omitempty"`
	Details         any       `json:"details,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// MarshalJSON renders the descriptor with its derived retryable flag.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{
		Kind:            d.Kind,
		Message:         d.Message,
		SuggestedAction: d.SuggestedAction,
		Retryable:       d.Kind.Retryable(),
		ErrorCode:       d.ErrorCode,
		StatusCode:      d.StatusCode,
		RetryAfterMS:    d.RetryAfter.Milliseconds(),
		Details:         d.Details,
		Timestamp:       d.Timestamp,
	})
}

// UnmarshalJSON restores a descriptor. The retryable flag in the payload is
// ignored and re-derived from the kind; unknown kinds become server_error.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind := raw.Kind
	if !kind.Valid() {
		kind = KindServerError
	}
	*d = Descriptor{
		Kind:            kind,
		Message:         raw.Message,
		SuggestedAction: raw.SuggestedAction,
		ErrorCode:       raw.ErrorCode,
		StatusCode:      raw.StatusCode,
		RetryAfter:      time.Duration(raw.RetryAfterMS) * time.Millisecond,
		Details:         raw.Details,
		Timestamp:       raw.Timestamp,
	}
	return nil
}
