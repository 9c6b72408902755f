package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/ports/secondary"
)

// handoffResyncer retries the store steps of one journaled handoff.
type handoffResyncer interface {
	Resync(ctx context.Context, caseID string) (dispatch.SessionRef, error)
}

// ReconcileServiceImpl implements the ReconcileService interface.
type ReconcileServiceImpl struct {
	journal  secondary.HandoffJournal
	resyncer handoffResyncer
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

// NewReconcileService creates a new ReconcileService with injected dependencies.
func NewReconcileService(journal secondary.HandoffJournal, resyncer handoffResyncer, clk clock.Clock, interval time.Duration, logger *slog.Logger) *ReconcileServiceImpl {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReconcileServiceImpl{
		journal:  journal,
		resyncer: resyncer,
		clock:    clk,
		interval: interval,
		logger:   logging.OrDiscard(logger),
	}
}

// ReconcileOnce retries every unsynced handoff once.
func (s *ReconcileServiceImpl) ReconcileOnce(ctx context.Context) (*primary.ReconcileReport, error) {
	records, err := s.journal.List(ctx, secondary.HandoffFilters{UnsyncedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced handoffs: %w", err)
	}

	report := &primary.ReconcileReport{}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		ref, err := s.resyncer.Resync(ctx, r.CaseID)
		if err != nil {
			report.Failed++
			s.logger.Warn("handoff still unsynced", "case_id", r.CaseID, "error", err)
			continue
		}
		report.Synced++
		s.logger.Info("handoff reconciled", "case_id", r.CaseID, "session_id", ref.SessionID)
	}
	return report, nil
}

// Run reconciles immediately and then every interval until ctx is done.
func (s *ReconcileServiceImpl) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("reconciliation pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Ensure ReconcileServiceImpl implements the interface
var _ primary.ReconcileService = (*ReconcileServiceImpl)(nil)
