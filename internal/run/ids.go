package run

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type runIDContextKey struct{}

// NewRunID creates an id for one top-level run.
func NewRunID() string {
	return uuid.NewString()
}

// NewBranchID creates an id for one branch of a call tree.
func NewBranchID() string {
	return uuid.NewString()
}

// WithRunID adds a run id to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDContextKey{}, runID)
}

// RunIDFromContext reads the run id from context.
func RunIDFromContext(ctx context.Context) string {
	v := ctx.Value(runIDContextKey{})
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
