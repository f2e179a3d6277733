package failure

import (
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// grpcStatus maps non-transport gRPC codes to their HTTP equivalents.
var grpcStatus = map[codes.Code]int{
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.Unimplemented:      http.StatusNotFound,
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.FailedPrecondition: http.StatusBadRequest,
	codes.OutOfRange:         http.StatusBadRequest,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
}

var grpcTransport = map[codes.Code]TransportFault{
	codes.Unavailable:      TransportNetwork,
	codes.DeadlineExceeded: TransportTimeout,
	codes.Canceled:         TransportCanceled,
}

// grpcFailure converts a gRPC status error. ErrorInfo.Reason becomes the vendor
// code and RetryInfo.RetryDelay the retry hint.
func grpcFailure(err error) (RawFailure, bool) {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return RawFailure{}, false
	}

	raw := RawFailure{Message: st.Message()}
	if t, ok := grpcTransport[st.Code()]; ok {
		raw.Transport = t
		return raw, true
	}

	raw.Status = http.StatusInternalServerError
	if s, ok := grpcStatus[st.Code()]; ok {
		raw.Status = s
	}

	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			raw.Vendor = &VendorError{
				Code:    d.GetReason(),
				Type:    d.GetDomain(),
				Message: st.Message(),
			}
			if len(d.GetMetadata()) > 0 {
				raw.Details = d.GetMetadata()
			}
		case *errdetails.RetryInfo:
			if d.GetRetryDelay() != nil {
				raw.RetryAfter = d.GetRetryDelay().AsDuration()
			}
		}
	}
	return raw, true
}
