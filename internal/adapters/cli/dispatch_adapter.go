// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/primary"
)

// DispatchAdapter is a thin adapter that translates console commands to DispatchService calls.
type DispatchAdapter struct {
	service primary.DispatchService
	search  primary.SearchService
	out     io.Writer
}

// NewDispatchAdapter creates a new DispatchAdapter with the given services.
func NewDispatchAdapter(service primary.DispatchService, search primary.SearchService, out io.Writer) *DispatchAdapter {
	return &DispatchAdapter{
		service: service,
		search:  search,
		out:     out,
	}
}

// Approve accepts a hospital on the operator's authority.
func (a *DispatchAdapter) Approve(ctx context.Context, hospitalID string) error {
	if err := a.service.Approve(ctx, hospitalID); err != nil {
		return fmt.Errorf("failed to approve %s: %w", hospitalID, err)
	}
	fmt.Fprintf(a.out, "✓ Approved %s\n", hospitalID)
	return nil
}

// Reject refuses a hospital on the operator's authority.
func (a *DispatchAdapter) Reject(ctx context.Context, hospitalID string) error {
	if err := a.service.Reject(ctx, hospitalID); err != nil {
		return fmt.Errorf("failed to reject %s: %w", hospitalID, err)
	}
	fmt.Fprintf(a.out, "✓ Rejected %s\n", hospitalID)
	return nil
}

// Research runs a fresh hospital search and restarts dispatch with it.
func (a *DispatchAdapter) Research(ctx context.Context, c dispatch.CaseInfo) error {
	tiers, err := a.search.Search(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Found %d primary, %d backup, %d neighbor hospitals\n",
		len(tiers.Primary), len(tiers.Backup), len(tiers.Neighbor))

	if err := a.service.RestartSearch(ctx, tiers); err != nil {
		return fmt.Errorf("failed to restart dispatch: %w", err)
	}
	fmt.Fprintln(a.out, "✓ Dispatch restarted")
	return nil
}

// Cancel ends the current round.
func (a *DispatchAdapter) Cancel(ctx context.Context) error {
	if err := a.service.Cancel(ctx); err != nil {
		return fmt.Errorf("failed to cancel: %w", err)
	}
	fmt.Fprintln(a.out, "✓ Dispatch cancelled")
	return nil
}

// Status renders the latest snapshot.
func (a *DispatchAdapter) Status() {
	a.Render(a.service.Snapshot())
}

// Watch renders a one-line notice whenever the operator view or current
// hospital changes, until ctx is done or the updates channel closes.
func (a *DispatchAdapter) Watch(ctx context.Context) {
	var lastView dispatch.View
	var lastCurrent string
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-a.service.Updates():
			if !ok {
				return
			}
			current := ""
			if snap.CurrentCandidate != nil {
				current = snap.CurrentCandidate.HospitalID
			}
			if snap.View == lastView && current == lastCurrent {
				continue
			}
			lastView, lastCurrent = snap.View, current
			fmt.Fprintln(a.out, a.Headline(snap))
		}
	}
}

// Headline summarizes a snapshot in one line.
func (a *DispatchAdapter) Headline(snap primary.DispatchSnapshot) string {
	switch snap.View {
	case dispatch.ViewSearching:
		return color.New(color.FgCyan).Sprint("● Searching for hospitals")
	case dispatch.ViewAwaitingHospital:
		return color.New(color.FgYellow).Sprintf("● Calling %s", candidateLabel(snap.CurrentCandidate))
	case dispatch.ViewAwaitingManual:
		if snap.CurrentCandidate != nil {
			return color.New(color.FgYellow).Sprintf("● Next: %s (type approve/reject or wait)", candidateLabel(snap.CurrentCandidate))
		}
		return color.New(color.FgYellow).Sprint("● Awaiting operator")
	case dispatch.ViewApproved:
		line := color.New(color.FgGreen, color.Bold).Sprintf("✓ Approved by %s", candidateLabel(snap.ApprovedHospital))
		if snap.Session != nil {
			line += fmt.Sprintf(" (session %s%s)", snap.Session.SessionID, localMarker(snap.Session))
		}
		return line
	case dispatch.ViewExhausted:
		return color.New(color.FgRed, color.Bold).Sprintf("✗ No hospital accepted (%d rejected). Type research to search again", snap.RejectedCount)
	case dispatch.ViewCancelled:
		return color.New(color.FgRed).Sprint("✗ Dispatch cancelled")
	}
	return string(snap.View)
}

// Render prints the full snapshot with the candidate table.
func (a *DispatchAdapter) Render(snap primary.DispatchSnapshot) {
	fmt.Fprintf(a.out, "\nCase: %s\n", snap.CaseID)
	fmt.Fprintln(a.out, a.Headline(snap))

	if len(snap.Candidates) == 0 {
		fmt.Fprintln(a.out, "No candidates")
		fmt.Fprintln(a.out)
		return
	}

	fmt.Fprintf(a.out, "\n%-12s %-24s %-9s %8s %6s  %s\n", "HPID", "NAME", "TIER", "DIST", "ETA", "STATUS")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────────────")
	for _, c := range snap.Candidates {
		fmt.Fprintf(a.out, "%-12s %-24s %-9s %8s %6s  %s\n",
			c.HospitalID, truncate(c.Name, 24), c.Tier, formatDistance(c.DistanceKm), formatEta(c.EtaMinutes), statusLabel(c))
	}
	fmt.Fprintf(a.out, "\nRejected: %d\n\n", snap.RejectedCount)
}

func statusLabel(c dispatch.CandidateState) string {
	label := string(c.Status)
	if c.Reason != "" && c.Status != dispatch.StatusPending {
		label += " (" + string(c.Reason) + ")"
	}
	switch c.Status {
	case dispatch.StatusApproved:
		return color.New(color.FgGreen).Sprint(label)
	case dispatch.StatusRejected:
		return color.New(color.FgRed).Sprint(label)
	case dispatch.StatusCalling:
		return color.New(color.FgYellow).Sprint(label)
	}
	return label
}

func candidateLabel(c *dispatch.Candidate) string {
	if c == nil {
		return "-"
	}
	if c.Name == "" {
		return c.HospitalID
	}
	return fmt.Sprintf("%s [%s]", c.Name, c.HospitalID)
}

func localMarker(s *dispatch.SessionRef) string {
	if s.Local {
		return ", local"
	}
	return ""
}

func formatDistance(km float64) string {
	if km <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fkm", km)
}

func formatEta(min int) string {
	if min <= 0 {
		return "-"
	}
	return fmt.Sprintf("%dm", min)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
