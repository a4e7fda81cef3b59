package upload

import (
	"context"
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
)

// isRetryable classifies an upload error. Network-level failures, timeouts,
// throttling and server-side errors are worth retrying; any other HTTP error
// from storage means the request itself is bad and retrying would only burn
// the budget.
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		switch {
		case code >= 500:
			return true
		case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
			return true
		default:
			return false
		}
	}

	// No HTTP response at all: connection refused, DNS failure, reset.
	return true
}
