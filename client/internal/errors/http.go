package errors

import (
	"context"
	stderrors "errors"
	"net/http"
)

// ClassifyStatus maps an HTTP status code to a category:
//   - 408 and 429 are recoverable
//   - other 4xx client errors are irrecoverable
//   - 5xx server errors are recoverable, except 501 Not Implemented
func ClassifyStatus(statusCode int) Classification {
	return Classification{Category: statusCategory(statusCode), StatusCode: statusCode}
}

func statusCategory(statusCode int) Category {
	switch {
	case statusCode < 400:
		return Irrecoverable
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return Recoverable
	case statusCode < 500:
		return Irrecoverable
	case statusCode == http.StatusNotImplemented:
		return Irrecoverable
	case statusCode < 600:
		return Recoverable
	default:
		return Irrecoverable
	}
}

// ClassifyNetwork classifies a failure that produced no HTTP response.
// Context cancellation and deadline expiry belong to the caller and are not
// retried; everything else is assumed transient.
func ClassifyNetwork(err error) Classification {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return Classification{Category: Canceled}
	}
	return Classification{Category: Recoverable}
}
