package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"

	"tailorpress/internal/errors"
)

// classifyStatus maps an upstream HTTP status to the provider error
// taxonomy. Only NETWORK_TRANSIENT errors are ever retried by callers,
// so the mapping decides retry behavior for the whole pipeline.
func classifyStatus(id ID, statusCode int, cause error) error {
	msg := fmt.Sprintf("Provider %s returned HTTP %d", id, statusCode)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewProviderError(errors.ErrCodeAuthFailed, msg, cause)
	case http.StatusTooManyRequests:
		return errors.NewProviderError(errors.ErrCodeRateLimited, msg, cause)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return errors.NewNetworkError(errors.ErrCodeNetworkTransient, msg, cause)
	default:
		return errors.NewProviderError(errors.ErrCodeUpstreamFailed, msg, cause)
	}
}

// classifyTransportError maps a failed outbound call to the provider
// error taxonomy. Timeouts and connection failures are transient;
// upstream status codes go through classifyStatus.
func classifyTransportError(id ID, err error) error {
	if err == nil {
		return nil
	}

	// Already classified
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewNetworkError(errors.ErrCodeNetworkTransient,
			fmt.Sprintf("Provider %s call timed out", id), err)
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.NewNetworkError(errors.ErrCodeNetworkTransient,
			fmt.Sprintf("Provider %s network failure", id), err)
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return classifyStatus(id, apiErr.Code, err)
	}

	return errors.NewProviderError(errors.ErrCodeUpstreamFailed,
		fmt.Sprintf("Provider %s call failed", id), err)
}
