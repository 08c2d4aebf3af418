package services

import (
	"context"
	"time"
)

type contextKey string

const (
	runIDKey contextKey = "run_id"
	dateKey  contextKey = "broadcast_date"
	stageKey contextKey = "stage"
)

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDate annotates context with the broadcast date being processed.
func WithDate(ctx context.Context, date time.Time) context.Context {
	if date.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, dateKey, date)
}

// DateFromContext returns the broadcast date if present.
func DateFromContext(ctx context.Context) (time.Time, bool) {
	v, ok := ctx.Value(dateKey).(time.Time)
	if !ok || v.IsZero() {
		return time.Time{}, false
	}
	return v, true
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
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
