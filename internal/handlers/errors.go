package handlers

import (
	"net/http"

	"github.com/gravitational/trace"
)

// writeError maps the core's failure taxonomy to status codes. Connection
// problems get 503 so callers know the failure is retryable, never a deny or
// a not-found.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case trace.IsAccessDenied(err):
		http.Error(w, trace.UserMessage(err), http.StatusForbidden)
	case trace.IsNotFound(err):
		http.Error(w, trace.UserMessage(err), http.StatusNotFound)
	case trace.IsAlreadyExists(err), trace.IsCompareFailed(err), trace.IsLimitExceeded(err):
		http.Error(w, trace.UserMessage(err), http.StatusConflict)
	case trace.IsBadParameter(err):
		http.Error(w, trace.UserMessage(err), http.StatusBadRequest)
	case trace.IsConnectionProblem(err):
		http.Error(w, "Service temporarily unavailable, retry later", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
