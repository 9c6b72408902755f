// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// ActorKey is the context key for the operator ID.
type ActorKey struct{}

// CaseKey is the context key for the case ID.
type CaseKey struct{}

// WithActorID returns a context carrying the operator who issued a command.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actorID)
}

// ActorFromContext returns the operator ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok {
		return v
	}
	return ""
}

// WithCaseID returns a context scoped to one emergency case.
func WithCaseID(ctx context.Context, caseID string) context.Context {
	return context.WithValue(ctx, CaseKey{}, caseID)
}

// CaseFromContext returns the case ID from context, or empty string if not set.
func CaseFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CaseKey{}).(string); ok {
		return v
	}
	return ""
}
