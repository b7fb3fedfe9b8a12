package store

import (
	"context"
	"errors"

	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/mongo"
)

// convertError maps driver errors onto the failure taxonomy the core works
// with. Anything that is not a clean business outcome becomes a connection
// problem, which is the only retryable class.
func convertError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return trace.NotFound("%s: not found", msg)
	case mongo.IsDuplicateKeyError(err):
		return trace.AlreadyExists("%s: already exists", msg)
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return trace.ConnectionProblem(err, "%s: timed out", msg)
	default:
		return trace.ConnectionProblem(err, "%s: store unavailable", msg)
	}
}
