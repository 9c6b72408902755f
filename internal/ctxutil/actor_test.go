package ctxutil

import (
	"context"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if got := ActorFromContext(ctx); got != "" {
		t.Errorf("ActorFromContext(empty) = %q", got)
	}
	if got := CaseFromContext(ctx); got != "" {
		t.Errorf("CaseFromContext(empty) = %q", got)
	}

	ctx = WithCaseID(WithActorID(ctx, "OPERATOR-kim"), "CASE-1")
	if got := ActorFromContext(ctx); got != "OPERATOR-kim" {
		t.Errorf("ActorFromContext = %q, want OPERATOR-kim", got)
	}
	if got := CaseFromContext(ctx); got != "CASE-1" {
		t.Errorf("CaseFromContext = %q, want CASE-1", got)
	}
}
