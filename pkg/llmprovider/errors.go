package llmprovider

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/redlance/redlance/pkg/errs"
)

// classifyGRPCError maps a gRPC status error from the model-serving
// process into the provider failure taxonomy the spec requires:
// NetworkError, QuotaExceeded, InvalidAPIKey, ModelUnavailable, Malformed.
// All are recoverable at the agent loop layer.
func classifyGRPCError(tier string, err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return errs.Recoverable(errs.KindProviderNetwork, fmt.Errorf("%s provider: %w", tier, err))
	}

	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return errs.Recoverable(errs.KindProviderInvalidCreds, fmt.Errorf("%s provider: %s", tier, st.Message()))
	case codes.ResourceExhausted:
		return errs.Recoverable(errs.KindProviderQuota, fmt.Errorf("%s provider: %s", tier, st.Message()))
	case codes.Unavailable, codes.DeadlineExceeded:
		return errs.Recoverable(errs.KindProviderUnavailable, fmt.Errorf("%s provider: %s", tier, st.Message()))
	case codes.InvalidArgument, codes.DataLoss:
		return errs.Recoverable(errs.KindProviderMalformed, fmt.Errorf("%s provider: %s", tier, st.Message()))
	case codes.Unknown:
		if isNetworkish(st.Message()) {
			return errs.Recoverable(errs.KindProviderNetwork, fmt.Errorf("%s provider: %s", tier, st.Message()))
		}
		return errs.Recoverable(errs.KindProviderNetwork, fmt.Errorf("%s provider: %s", tier, st.Message()))
	default:
		return errs.Recoverable(errs.KindProviderNetwork, fmt.Errorf("%s provider: %s", tier, st.Message()))
	}
}

func isNetworkish(msg string) bool {
	lower := strings.ToLower(msg)
	for _, needle := range []string{"connection refused", "connection reset", "no such host", "eof"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

var errEmptyResponse = errors.New("provider returned an empty response")
