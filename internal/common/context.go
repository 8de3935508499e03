package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID       contextKey = "run_id"
	ContextKeyContainerID contextKey = "container_id"
)

// WithRunID adds a pipeline run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithContainerID adds the remote container ID to the context
func WithContainerID(ctx context.Context, containerID string) context.Context {
	return context.WithValue(ctx, ContextKeyContainerID, containerID)
}

// ContainerIDFromContext extracts the container ID from context
func ContainerIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyContainerID).(string); ok {
		return id
	}
	return ""
}

// LoggerFrom returns logger annotated with whatever run identifiers ctx carries.
func LoggerFrom(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RunIDFromContext(ctx); id != "" {
		logger = logger.With("run_id", id)
	}
	if id := ContainerIDFromContext(ctx); id != "" {
		logger = logger.With("container_id", id)
	}
	return logger
}
