package log

import (
	"context"

	"github.com/google/uuid"
)

type (
	requestIDKey struct{}
	jobKey       struct{}
	runIDKey     struct{}
)

// NewID generates a random UUID v4 used for request and run IDs.
func NewID() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request ID from ctx. Returns "" if absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithRun tags ctx with the scheduler job name and run ID.
func WithRun(ctx context.Context, job, runID string) context.Context {
	ctx = context.WithValue(ctx, jobKey{}, job)
	return context.WithValue(ctx, runIDKey{}, runID)
}

func Run(ctx context.Context) (job, runID string) {
	job, _ = ctx.Value(jobKey{}).(string)
	runID, _ = ctx.Value(runIDKey{}).(string)
	return job, runID
}
