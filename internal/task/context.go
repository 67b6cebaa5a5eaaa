package task

import "context"

type jobIDKey struct{}

// WithJobID returns a context carrying the job handle.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDFromContext returns the handle of the job running under ctx, or ""
// outside a task.
func JobIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}
