package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/ports/secondary"
)

// SearchServiceImpl implements the SearchService interface.
type SearchServiceImpl struct {
	search secondary.HospitalSearch
	retry  RetryPolicy
	logger *slog.Logger
}

// NewSearchService creates a new SearchService with injected dependencies.
func NewSearchService(search secondary.HospitalSearch, retry RetryPolicy, logger *slog.Logger) *SearchServiceImpl {
	return &SearchServiceImpl{
		search: search,
		retry:  retry,
		logger: logging.OrDiscard(logger),
	}
}

// Search returns normalized tiers for a case. Empty tiers are not an error.
func (s *SearchServiceImpl) Search(ctx context.Context, c dispatch.CaseInfo) (dispatch.Tiers, error) {
	query := secondary.SearchQuery{
		CaseID:  c.CaseID,
		Lat:     c.Lat,
		Lon:     c.Lon,
		Symptom: c.Symptom,
		Summary: c.Summary,
		PreKTAS: c.PreKTAS,
	}

	var tiers dispatch.Tiers
	op := func() error {
		t, err := s.search.Search(ctx, query)
		if err != nil {
			s.logger.Debug("hospital search failed", "case_id", c.CaseID, "error", err)
			return err
		}
		tiers = t
		return nil
	}
	if err := backoff.Retry(op, s.retry.backOff(ctx)); err != nil {
		return dispatch.Tiers{}, fmt.Errorf("failed to search hospitals: %w", err)
	}

	tiers = dispatch.Normalize(tiers)
	s.logger.Info("hospital search complete",
		"case_id", c.CaseID,
		"primary", len(tiers.Primary),
		"backup", len(tiers.Backup),
		"neighbor", len(tiers.Neighbor),
	)
	return tiers, nil
}

// Ensure SearchServiceImpl implements the interface
var _ primary.SearchService = (*SearchServiceImpl)(nil)
