package failure

import (
	"fmt"
	"time"
)

// TransportFault tags a failure that happened before any upstream answer arrived.
type TransportFault int

const (
	TransportNone     TransportFault = iota // Upstream answered (or the shape is unknown)
	TransportNetwork                        // Connection refused, reset, DNS failure
	TransportTimeout                        // Deadline exceeded or socket timeout
	TransportCanceled                       // Caller abandoned the operation
)

func (t TransportFault) String() string {
	switch t {
	case TransportNone:
		return "none"
	case TransportNetwork:
		return "network"
	case TransportTimeout:
		return "timeout"
	case TransportCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// VendorError is the error object an upstream embeds in its response body.
type VendorError struct {
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	// Raw is the undecoded error object.
	Raw string `json:"-"`
}

// Key returns the identifier used for classification: Code, or Type when Code is empty.
func (v *VendorError) Key() string {
	if v == nil {
		return ""
	}
	if v.Code != "" {
		return v.Code
	}
	return v.Type
}

// RawFailure is every failure shape the classifier understands. Zero fields
// mean "not present".
type RawFailure struct {
	Transport  TransportFault
	Status     int
	Vendor     *VendorError
	Message    string
	Details    any
	RetryAfter time.Duration
	Err        error
}

// StatusError is returned by HTTP callers for non-2xx responses.
type StatusError struct {
	Status     int
	Body       []byte
	Vendor     *VendorError
	RetryAfter time.Duration
	Endpoint   string
}

// NewStatusError builds a StatusError and parses the vendor error object out of body.
func NewStatusError(endpoint string, status int, body []byte, retryAfter time.Duration) *StatusError {
	return &StatusError{
		Status:     status,
		Body:       body,
		Vendor:     ParseVendorError(body),
		RetryAfter: retryAfter,
		Endpoint:   endpoint,
	}
}

func (e *StatusError) Error() string {
	if e.Vendor != nil && e.Vendor.Message != "" {
		return fmt.Sprintf("%s: http %d: %s", e.Endpoint, e.Status, e.Vendor.Message)
	}
	return fmt.Sprintf("%s: http %d", e.Endpoint, e.Status)
}

// StatusCode returns the HTTP status of the response.
func (e *StatusError) StatusCode() int {
	return e.Status
}
