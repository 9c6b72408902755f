package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/safebridge/internal/ports/primary"
)

// LogAdapter renders the decision log.
type LogAdapter struct {
	service primary.LogService
	out     io.Writer
}

// NewLogAdapter creates a new LogAdapter.
func NewLogAdapter(service primary.LogService, out io.Writer) *LogAdapter {
	return &LogAdapter{service: service, out: out}
}

// List lists decisions matching filters.
func (a *LogAdapter) List(ctx context.Context, filters primary.DecisionFilters) error {
	entries, err := a.service.ListDecisions(ctx, filters)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No decisions found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-9s %-20s %-18s %-10s %-9s %-8s %s\n", "ID", "TIME", "CASE", "HOSPITAL", "DECISION", "SOURCE", "REASON")
	fmt.Fprintln(a.out, "──────────────────────────────────────────────────────────────────────────────────────")
	for _, e := range entries {
		fmt.Fprintf(a.out, "%-9s %-20s %-18s %-10s %-9s %-8s %s\n", e.ID, e.CreatedAt, e.CaseID, e.HospitalID, e.Decision, e.Source, e.Reason)
	}
	fmt.Fprintln(a.out)
	return nil
}

// Show displays a single decision.
func (a *LogAdapter) Show(ctx context.Context, id string) error {
	e, err := a.service.GetDecision(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get decision: %w", err)
	}
	fmt.Fprintf(a.out, "\nDecision: %s\n", e.ID)
	fmt.Fprintf(a.out, "Case:     %s\n", e.CaseID)
	fmt.Fprintf(a.out, "Hospital: %s\n", e.HospitalID)
	fmt.Fprintf(a.out, "Outcome:  %s (%s via %s)\n", e.Decision, e.Reason, e.Source)
	if e.ActorID != "" {
		fmt.Fprintf(a.out, "Actor:    %s\n", e.ActorID)
	}
	fmt.Fprintf(a.out, "Time:     %s\n\n", e.CreatedAt)
	return nil
}

// Prune deletes decisions older than days.
func (a *LogAdapter) Prune(ctx context.Context, days int) error {
	n, err := a.service.PruneDecisions(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to prune decisions: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Pruned %d decisions older than %d days\n", n, days)
	return nil
}
