package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/safebridge/internal/ports/primary"
)

// HandoffAdapter renders the handoff journal and drives reconciliation.
type HandoffAdapter struct {
	service   primary.HandoffService
	reconcile primary.ReconcileService
	out       io.Writer
}

// NewHandoffAdapter creates a new HandoffAdapter.
func NewHandoffAdapter(service primary.HandoffService, reconcile primary.ReconcileService, out io.Writer) *HandoffAdapter {
	return &HandoffAdapter{
		service:   service,
		reconcile: reconcile,
		out:       out,
	}
}

// List lists handoffs, optionally only unsynced ones.
func (a *HandoffAdapter) List(ctx context.Context, unsyncedOnly bool, limit int) error {
	handoffs, err := a.service.ListHandoffs(ctx, unsyncedOnly, limit)
	if err != nil {
		return fmt.Errorf("failed to list handoffs: %w", err)
	}

	if len(handoffs) == 0 {
		fmt.Fprintln(a.out, "No handoffs found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-18s %-12s %-12s %-8s %s\n", "CASE", "HOSPITAL", "SESSION", "STATE", "UPDATED")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, h := range handoffs {
		fmt.Fprintf(a.out, "%-18s %-12s %-12s %-8s %s\n", h.CaseID, h.HospitalID, truncate(h.SessionID, 12), syncLabel(h), h.UpdatedAt)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Show displays details for a single handoff.
func (a *HandoffAdapter) Show(ctx context.Context, caseID string) error {
	h, err := a.service.GetHandoff(ctx, caseID)
	if err != nil {
		return fmt.Errorf("failed to get handoff: %w", err)
	}

	fmt.Fprintf(a.out, "\nCase:       %s\n", h.CaseID)
	fmt.Fprintf(a.out, "Hospital:   %s %s\n", h.HospitalID, h.HospitalName)
	fmt.Fprintf(a.out, "State:      %s\n", syncLabel(h))
	if h.RequestID != "" {
		fmt.Fprintf(a.out, "Request:    %s\n", h.RequestID)
	}
	if h.AssignmentID != "" {
		fmt.Fprintf(a.out, "Assignment: %s\n", h.AssignmentID)
	}
	fmt.Fprintf(a.out, "Session:    %s\n", h.SessionID)
	if h.Attempts > 0 {
		fmt.Fprintf(a.out, "Attempts:   %d\n", h.Attempts)
	}
	if h.LastError != "" {
		fmt.Fprintf(a.out, "Last error: %s\n", h.LastError)
	}
	fmt.Fprintf(a.out, "Created:    %s\n", h.CreatedAt)
	fmt.Fprintln(a.out)
	return nil
}

// Reconcile runs one reconciliation pass and prints the report.
func (a *HandoffAdapter) Reconcile(ctx context.Context) error {
	report, err := a.reconcile.ReconcileOnce(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconcile: %w", err)
	}
	if report.Checked == 0 {
		fmt.Fprintln(a.out, "✓ Nothing to reconcile")
		return nil
	}
	fmt.Fprintf(a.out, "✓ Reconciled %d of %d handoffs", report.Synced, report.Checked)
	if report.Failed > 0 {
		fmt.Fprint(a.out, color.New(color.FgYellow).Sprintf(" (%d still local)", report.Failed))
	}
	fmt.Fprintln(a.out)
	return nil
}

func syncLabel(h *primary.Handoff) string {
	if h.Synced {
		return color.New(color.FgGreen).Sprint("synced")
	}
	return color.New(color.FgYellow).Sprint("local")
}
