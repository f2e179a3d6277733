package failure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_StatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{400, KindValidation},
		{401, KindAuth},
		{403, KindPermission},
		{404, KindToolNotFound},
		{429, KindRateLimit},
		{500, KindServerError},
		{502, KindServerError},
		{503, KindServerError},
		{504, KindServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			d := Classify(RawFailure{Status: tt.status})
			assert.Equal(t, tt.want, d.Kind)
			assert.Equal(t, tt.status, d.StatusCode)
			assert.NotEmpty(t, d.Message)
			assert.NotEmpty(t, d.SuggestedAction)
		})
	}
}

func TestClassify_RateLimitExample(t *testing.T) {
	d := Classify(RawFailure{Status: 429})
	assert.Equal(t, KindRateLimit, d.Kind)
	assert.True(t, d.Retryable())
}

func TestClassify_VendorCodes(t *testing.T) {
	tests := []struct {
		code string
		want Kind
	}{
		{"INVALID_API_KEY", KindAuth},
		{"APP_NOT_CONNECTED", KindPermission},
		{"INSUFFICIENT_PERMISSIONS", KindPermission},
		{"TOOL_NOT_FOUND", KindToolNotFound},
		{"SOME_NEW_CODE", KindServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			d := Classify(RawFailure{Vendor: &VendorError{Code: tt.code}})
			assert.Equal(t, tt.want, d.Kind)
			assert.Equal(t, tt.code, d.ErrorCode)
		})
	}
}

func TestClassify_UnknownVendorCodeIsRetryableServerError(t *testing.T) {
	v := ParseVendorError([]byte(`{"error":{"code":"SOME_NEW_CODE"}}`))
	require.NotNil(t, v)

	d := Classify(RawFailure{Vendor: v})
	assert.Equal(t, KindServerError, d.Kind)
	assert.True(t, d.Retryable())
	assert.Equal(t, "SOME_NEW_CODE", d.ErrorCode)
}

func TestClassify_VendorTypeUsedWhenCodeMissing(t *testing.T) {
	d := Classify(RawFailure{Vendor: &VendorError{Type: "TOOL_NOT_FOUND"}})
	assert.Equal(t, KindToolNotFound, d.Kind)
}

func TestClassify_Priority(t *testing.T) {
	t.Run("transport beats status", func(t *testing.T) {
		d := Classify(RawFailure{Transport: TransportTimeout, Status: 401})
		assert.Equal(t, KindNetwork, d.Kind)
	})

	t.Run("status beats vendor code", func(t *testing.T) {
		d := Classify(RawFailure{Status: 401, Vendor: &VendorError{Code: "TOOL_NOT_FOUND"}})
		assert.Equal(t, KindAuth, d.Kind)
		assert.Equal(t, "TOOL_NOT_FOUND", d.ErrorCode)
	})

	t.Run("unmapped status falls through to vendor code", func(t *testing.T) {
		d := Classify(RawFailure{Status: 418, Vendor: &VendorError{Code: "APP_NOT_CONNECTED"}})
		assert.Equal(t, KindPermission, d.Kind)
		assert.Equal(t, 418, d.StatusCode)
	})
}

func TestClassify_Fallback(t *testing.T) {
	d := Classify(RawFailure{})
	assert.Equal(t, KindServerError, d.Kind)
	assert.Equal(t, fallbackMessage, d.Message)

	d = Classify(RawFailure{Message: "boom"})
	assert.Equal(t, KindServerError, d.Kind)
	assert.Equal(t, "boom", d.Message)
	assert.True(t, d.Retryable())
}

func TestClassify_DeterministicRegardlessOfMessage(t *testing.T) {
	inputs := []RawFailure{
		{Status: 403},
		{Vendor: &VendorError{Code: "INVALID_API_KEY"}},
		{Transport: TransportNetwork},
	}
	for _, in := range inputs {
		first := Classify(in)
		for _, msg := range []string{"", "a", "something else entirely"} {
			variant := in
			variant.Message = msg
			variant.Details = map[string]any{"msg": msg}
			got := Classify(variant)
			assert.Equal(t, first.Kind, got.Kind)
			assert.Equal(t, first.Retryable(), got.Retryable())
		}
	}
}

func TestClassify_RetryableInvariant(t *testing.T) {
	retryable := map[Kind]bool{KindNetwork: true, KindRateLimit: true, KindServerError: true}

	var inputs []RawFailure
	for status := 100; status < 600; status++ {
		inputs = append(inputs, RawFailure{Status: status})
	}
	for _, code := range []string{"INVALID_API_KEY", "APP_NOT_CONNECTED", "INSUFFICIENT_PERMISSIONS", "TOOL_NOT_FOUND", "X", ""} {
		inputs = append(inputs, RawFailure{Vendor: &VendorError{Code: code}})
	}
	for _, tf := range []TransportFault{TransportNone, TransportNetwork, TransportTimeout, TransportCanceled} {
		inputs = append(inputs, RawFailure{Transport: tf})
	}

	for _, in := range inputs {
		d := Classify(in)
		require.True(t, d.Kind.Valid(), "invalid kind %q", d.Kind)
		assert.Equal(t, retryable[d.Kind], d.Retryable(), "kind %s", d.Kind)
	}
}

func TestFromError_Transport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TransportFault
	}{
		{"canceled", context.Canceled, TransportCanceled},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), TransportTimeout},
		{"conn refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, TransportNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "vendor.invalid"}, TransportNetwork},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("EOF")}, TransportNetwork},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), TransportNetwork},
		{"plain", errors.New("nope"), TransportNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromError(tt.err).Transport)
		})
	}
}

func TestFromError_StatusError(t *testing.T) {
	body := []byte(`{"error":{"code":"APP_NOT_CONNECTED","message":"github is not connected"}}`)
	err := fmt.Errorf("execute: %w", NewStatusError("/actions/x/execute", 403, body, 0))

	d := ClassifyError(err)
	require.NotNil(t, d)
	assert.Equal(t, KindPermission, d.Kind)
	assert.Equal(t, 403, d.StatusCode)
	assert.Equal(t, "APP_NOT_CONNECTED", d.ErrorCode)
	assert.Equal(t, "github is not connected", d.Message)
	assert.ErrorIs(t, d, err)
}

type codedErr struct{ code int }

func (e codedErr) Error() string   { return "coded" }
func (e codedErr) StatusCode() int { return e.code }

func TestFromError_StatusCoder(t *testing.T) {
	d := ClassifyError(codedErr{code: 401})
	assert.Equal(t, KindAuth, d.Kind)
}

func TestClassifyError_PassesDescriptorThrough(t *testing.T) {
	orig := Classify(RawFailure{Status: 404})
	wrapped := fmt.Errorf("lookup: %w", orig)

	assert.Same(t, orig, ClassifyError(wrapped))
	assert.Nil(t, ClassifyError(nil))
}

func TestDescriptor_JSON(t *testing.T) {
	d := Classify(RawFailure{Status: 429, RetryAfter: 2 * time.Second})

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "rate_limit", m["kind"])
	assert.Equal(t, true, m["retryable"])
	assert.Equal(t, float64(2000), m["retry_after_ms"])

	// retryable in the payload never overrides the kind
	var back Descriptor
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"auth","retryable":true}`), &back))
	assert.Equal(t, KindAuth, back.Kind)
	assert.False(t, back.Retryable())

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"mystery"}`), &back))
	assert.Equal(t, KindServerError, back.Kind)
}

func TestParseVendorError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *VendorError
	}{
		{"nested code", `{"error":{"code":"TOOL_NOT_FOUND","message":"no such tool"}}`, &VendorError{Code: "TOOL_NOT_FOUND", Message: "no such tool"}},
		{"nested type", `{"error":{"type":"INVALID_API_KEY"}}`, &VendorError{Type: "INVALID_API_KEY"}},
		{"top level", `{"code":"APP_NOT_CONNECTED","message":"connect first"}`, &VendorError{Code: "APP_NOT_CONNECTED", Message: "connect first"}},
		{"string error", `{"error":"bad things"}`, &VendorError{Message: "bad things"}},
		{"no error", `{"data":[]}`, nil},
		{"not json", `<html>502</html>`, nil},
		{"empty", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVendorError([]byte(tt.body))
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.Code, got.Code)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.Message, got.Message)
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(Classify(RawFailure{Status: 401})))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(Classify(RawFailure{Vendor: &VendorError{Code: "APP_NOT_CONNECTED"}})))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Classify(RawFailure{Transport: TransportNetwork})))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(ClassifyError(context.DeadlineExceeded)))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Classify(RawFailure{Vendor: &VendorError{Code: "NEW"}})))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(nil))
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 7)
	assert.Equal(t, KindNetwork, kinds[0])
	assert.Equal(t, KindServerError, kinds[6])

	kinds[0] = "mutated"
	assert.Equal(t, KindNetwork, Kinds()[0])
}

func TestInvalid(t *testing.T) {
	cause := errors.New("unexpected EOF")
	d := Invalid("invalid request body", cause)

	assert.Equal(t, KindValidation, d.Kind)
	assert.Equal(t, "invalid request body", d.Message)
	assert.Equal(t, http.StatusBadRequest, d.StatusCode)
	assert.Empty(t, d.ErrorCode)
	assert.ErrorIs(t, d, cause)
	assert.False(t, d.Retryable())
}
