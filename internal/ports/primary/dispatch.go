// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which the outside world drives the application.
package primary

import (
	"context"

	"github.com/example/safebridge/internal/core/dispatch"
)

// DispatchService defines the primary port for the dispatch of one case.
// State is only ever changed through these commands; readers get snapshots.
type DispatchService interface {
	// Approve is an operator override accepting a hospital.
	Approve(ctx context.Context, hospitalID string) error

	// Reject is an operator override refusing a hospital.
	Reject(ctx context.Context, hospitalID string) error

	// RestartSearch replaces the candidate pool with a fresh search result.
	RestartSearch(ctx context.Context, tiers dispatch.Tiers) error

	// Cancel ends the current round without approving anyone.
	Cancel(ctx context.Context) error

	// Snapshot returns the latest read model.
	Snapshot() DispatchSnapshot

	// Updates delivers a snapshot after every processed event.
	// Slow readers miss intermediate snapshots, never the latest one.
	Updates() <-chan DispatchSnapshot
}

// DispatchSnapshot is the read model exposed to the presentation layer.
type DispatchSnapshot = dispatch.Snapshot
