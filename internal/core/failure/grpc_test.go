package failure

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestClassifyError_GRPCCodes(t *testing.T) {
	tests := []struct {
		code codes.Code
		want Kind
	}{
		{codes.Unavailable, KindNetwork},
		{codes.DeadlineExceeded, KindNetwork},
		{codes.Canceled, KindNetwork},
		{codes.Unauthenticated, KindAuth},
		{codes.PermissionDenied, KindPermission},
		{codes.NotFound, KindToolNotFound},
		{codes.Unimplemented, KindToolNotFound},
		{codes.InvalidArgument, KindValidation},
		{codes.FailedPrecondition, KindValidation},
		{codes.ResourceExhausted, KindRateLimit},
		{codes.Internal, KindServerError},
		{codes.Unknown, KindServerError},
		{codes.DataLoss, KindServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			d := ClassifyError(status.Error(tt.code, "backend says no"))
			require.NotNil(t, d)
			assert.Equal(t, tt.want, d.Kind)
		})
	}
}

func TestClassifyError_GRPCDetails(t *testing.T) {
	st, err := status.New(codes.FailedPrecondition, "github account missing").WithDetails(
		&errdetails.ErrorInfo{
			Reason:   "APP_NOT_CONNECTED",
			Domain:   "integrations",
			Metadata: map[string]string{"app": "github"},
		},
		&errdetails.RetryInfo{RetryDelay: durationpb.New(3 * time.Second)},
	)
	require.NoError(t, err)

	d := ClassifyError(fmt.Errorf("check: %w", st.Err()))
	require.NotNil(t, d)

	// FailedPrecondition maps to 400, which outranks the vendor reason.
	assert.Equal(t, KindValidation, d.Kind)
	assert.Equal(t, "APP_NOT_CONNECTED", d.ErrorCode)
	assert.Equal(t, 3*time.Second, d.RetryAfter)
	assert.Equal(t, map[string]string{"app": "github"}, d.Details)
}

func TestFromError_GRPCTransport(t *testing.T) {
	raw := FromError(status.Error(codes.Unavailable, "connection refused"))
	assert.Equal(t, TransportNetwork, raw.Transport)
	assert.Equal(t, 0, raw.Status)

	raw = FromError(status.Error(codes.DeadlineExceeded, "slow"))
	assert.Equal(t, TransportTimeout, raw.Transport)
}
