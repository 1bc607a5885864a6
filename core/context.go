package core

import "context"

// Context keys for run options
type contextKey string

const (
	runIDKey  contextKey = "runID"
	workerKey contextKey = "worker"
)

// withRunID stores the run identifier in the context
func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run identifier stored in the context, if any
func RunIDFromContext(ctx context.Context) string {
	val := ctx.Value(runIDKey)
	if val == nil {
		return ""
	}
	id, _ := val.(string)
	return id
}

// withWorker stores the grading worker index in the context
func withWorker(ctx context.Context, worker int) context.Context {
	return context.WithValue(ctx, workerKey, worker)
}

// workerFromContext returns the worker index from context, -1 when unset
func workerFromContext(ctx context.Context) int {
	val := ctx.Value(workerKey)
	if val == nil {
		return -1
	}
	worker, ok := val.(int)
	if !ok {
		return -1
	}
	return worker
}
