package llmprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/redlance/redlance/pkg/errs"
)

func TestClassifyGRPCErrorMapsUnauthenticatedToInvalidCreds(t *testing.T) {
	err := classifyGRPCError("fast", status.Error(codes.Unauthenticated, "bad key"))
	var classified *errs.Classified
	assert.ErrorAs(t, err, &classified)
	assert.Equal(t, errs.KindProviderInvalidCreds, classified.Kind)
	assert.True(t, classified.Recoverable)
}

func TestClassifyGRPCErrorMapsResourceExhaustedToQuota(t *testing.T) {
	err := classifyGRPCError("deep", status.Error(codes.ResourceExhausted, "rate limited"))
	var classified *errs.Classified
	assert.ErrorAs(t, err, &classified)
	assert.Equal(t, errs.KindProviderQuota, classified.Kind)
}

func TestClassifyGRPCErrorMapsUnavailableToModelUnavailable(t *testing.T) {
	err := classifyGRPCError("fast", status.Error(codes.Unavailable, "down"))
	var classified *errs.Classified
	assert.ErrorAs(t, err, &classified)
	assert.Equal(t, errs.KindProviderUnavailable, classified.Kind)
}

func TestClassifyGRPCErrorMapsInvalidArgumentToMalformed(t *testing.T) {
	err := classifyGRPCError("fast", status.Error(codes.InvalidArgument, "bad json"))
	var classified *errs.Classified
	assert.ErrorAs(t, err, &classified)
	assert.Equal(t, errs.KindProviderMalformed, classified.Kind)
}

func TestClassifyGRPCErrorNilIsNil(t *testing.T) {
	assert.NoError(t, classifyGRPCError("fast", nil))
}
