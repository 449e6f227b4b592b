package services

import "context"

type contextKey string

const (
	runKeyKey  contextKey = "run_key"
	stageKey   contextKey = "stage"
	videoIDKey contextKey = "video_id"
)

// WithRunKey annotates context with the pipeline run correlation key.
func WithRunKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, runKeyKey, key)
}

// RunKeyFromContext extracts the run correlation key if present.
func RunKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithVideoID annotates context with the canonical video identifier.
func WithVideoID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, videoIDKey, id)
}

// VideoIDFromContext extracts the video identifier if present.
func VideoIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(videoIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
