package failure

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// rule is one row of a lookup table.
type rule struct {
	kind    Kind
	message string
	action  string
}

var statusRules = map[int]rule{
	400: {KindValidation, "The request was rejected as malformed", "Check the request parameters and try again"},
	401: {KindAuth, "Authentication failed", "Check that the API key is valid and has not been revoked"},
	403: {KindPermission, "Access denied", "Connect the app or grant the missing permissions, then retry"},
	404: {KindToolNotFound, "The requested tool or endpoint was not found", "Verify the tool name and that the app exposes it"},
	429: {KindRateLimit, "Rate limit exceeded", "Wait a moment before sending more requests"},
	500: {KindServerError, "The upstream service hit an internal error", "Try again shortly"},
	502: {KindServerError, "The upstream service returned a bad gateway", "Try again shortly"},
	503: {KindServerError, "The upstream service is unavailable", "Try again shortly; the service may be under maintenance"},
	504: {KindServerError, "The upstream service timed out", "Try again shortly"},
}

var vendorRules = map[string]rule{
	"INVALID_API_KEY":          {KindAuth, "The API key is invalid", "Generate a new API key and update the configuration"},
	"APP_NOT_CONNECTED":        {KindPermission, "The app is not connected", "Connect the app account before using its tools"},
	"INSUFFICIENT_PERMISSIONS": {KindPermission, "The connection lacks required permissions", "Reconnect the app with the required scopes"},
	"TOOL_NOT_FOUND":           {KindToolNotFound, "The requested tool does not exist", "Check the tool name against the app's tool list"},
}

var transportRules = map[TransportFault]rule{
	TransportNetwork:  {KindNetwork, "Could not reach the upstream service", "Check network connectivity and try again"},
	TransportTimeout:  {KindNetwork, "The request timed out", "Try again; the upstream service may be slow"},
	TransportCanceled: {KindNetwork, "The request was canceled", "Retry the request if it is still needed"},
}

const (
	fallbackMessage = "An unexpected error occurred"
	fallbackAction  = "Try again; contact support if the problem persists"
	unknownCodeText = "The upstream service reported an unrecognized error"
)

// StatusKind returns the kind mapped to an HTTP status, if any.
func StatusKind(status int) (Kind, bool) {
	r, ok := statusRules[status]
	return r.kind, ok
}

// VendorKind returns the kind mapped to a vendor error code, if any.
func VendorKind(code string) (Kind, bool) {
	r, ok := vendorRules[code]
	return r.kind, ok
}

// Classify maps a raw failure to exactly one descriptor. First match wins:
// transport fault, status code, vendor code, fallback.
func Classify(raw RawFailure) *Descriptor {
	d := &Descriptor{
		StatusCode: raw.Status,
		Details:    raw.Details,
		RetryAfter: raw.RetryAfter,
		Timestamp:  time.Now(),
		cause:      raw.Err,
	}
	if raw.Vendor != nil {
		d.ErrorCode = raw.Vendor.Key()
		if d.Details == nil && raw.Vendor.Raw != "" {
			d.Details = raw.Vendor.Raw
		}
	}

	if r, ok := transportRules[raw.Transport]; ok {
		d.apply(r)
		return d
	}

	if r, ok := statusRules[raw.Status]; ok {
		d.apply(r)
		if raw.Vendor != nil && raw.Vendor.Message != "" {
			d.Message = raw.Vendor.Message
		}
		return d
	}

	if key := raw.Vendor.Key(); key != "" {
		if r, ok := vendorRules[key]; ok {
			d.apply(r)
		} else {
			d.apply(rule{KindServerError, unknownCodeText, fallbackAction})
		}
		if raw.Vendor.Message != "" {
			d.Message = raw.Vendor.Message
		}
		return d
	}

	d.apply(rule{KindServerError, fallbackMessage, fallbackAction})
	switch {
	case raw.Message != "":
		d.Message = raw.Message
	case raw.Vendor != nil && raw.Vendor.Message != "":
		d.Message = raw.Vendor.Message
	case raw.Err != nil:
		d.Message = raw.Err.Error()
	}
	return d
}

// Invalid builds a validation descriptor for input rejected before any
// upstream call, keeping message as the user-facing text.
func Invalid(message string, cause error) *Descriptor {
	return Classify(RawFailure{
		Status: http.StatusBadRequest,
		Vendor: &VendorError{Message: message},
		Err:    cause,
	})
}

func (d *Descriptor) apply(r rule) {
	d.Kind = r.kind
	d.Message = r.message
	d.SuggestedAction = r.action
}

// ClassifyError classifies a Go error. A Descriptor already present in the
// chain is returned unchanged.
func ClassifyError(err error) *Descriptor {
	if err == nil {
		return nil
	}
	var d *Descriptor
	if errors.As(err, &d) {
		return d
	}
	return Classify(FromError(err))
}

type statusCoder interface {
	StatusCode() int
}

// FromError reduces an arbitrary Go error to a RawFailure.
func FromError(err error) RawFailure {
	raw := RawFailure{Err: err}
	if err == nil {
		return raw
	}
	raw.Message = err.Error()

	if t := transportFault(err); t != TransportNone {
		raw.Transport = t
		return raw
	}

	if st, ok := grpcFailure(err); ok {
		st.Err = err
		return st
	}

	var se *StatusError
	if errors.As(err, &se) {
		raw.Status = se.Status
		raw.Vendor = se.Vendor
		raw.RetryAfter = se.RetryAfter
		if se.Vendor == nil && len(se.Body) > 0 {
			raw.Details = string(se.Body)
		}
		return raw
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		raw.Status = sc.StatusCode()
	}
	return raw
}

func transportFault(err error) TransportFault {
	switch {
	case errors.Is(err, context.Canceled):
		return TransportCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return TransportTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return TransportNetwork
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, net.ErrClosed) {
		return TransportNetwork
	}

	// Any failure surfaced by the HTTP client itself (as opposed to a response) is transport-level.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return TransportNetwork
	}
	return TransportNone
}
